package output

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-yaml"
)

// DocumentResult is the outcome of querying one document.
type DocumentResult struct {
	Document string
	Duration time.Duration
	Error    error
}

// Summary aggregates the outcome of a run.
type Summary struct {
	DocumentResults    []DocumentResult
	ProcessedDocuments int
	SucceededDocuments int
	FailedDocuments    int
	TotalDuration      time.Duration
}

func NewSummary(expectedDocuments int) *Summary {
	return &Summary{
		DocumentResults: make([]DocumentResult, 0, expectedDocuments),
	}
}

func (s *Summary) Add(result DocumentResult) {
	s.DocumentResults = append(s.DocumentResults, result)
	s.ProcessedDocuments++

	if result.Error != nil {
		s.FailedDocuments++
	} else {
		s.SucceededDocuments++
	}
}

func (s *Summary) SetTotalDuration(duration time.Duration) {
	s.TotalDuration = duration
}

func (s *Summary) DocumentsPerSecond() float64 {
	if s.TotalDuration == 0 {
		return 0
	}
	return float64(s.ProcessedDocuments) / s.TotalDuration.Seconds()
}

func (s *Summary) SuccessPercentage() float64 {
	if s.ProcessedDocuments == 0 {
		return 0
	}
	return (float64(s.SucceededDocuments) / float64(s.ProcessedDocuments)) * 100
}

func (s *Summary) FailurePercentage() float64 {
	if s.ProcessedDocuments == 0 {
		return 0
	}
	return (float64(s.FailedDocuments) / float64(s.ProcessedDocuments)) * 100
}

// Format writes the summary in the given format.
func (s *Summary) Format(format Format, w io.Writer) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s.toEncodedSummary())
	case FormatYAML:
		data, err := yaml.Marshal(s.toEncodedSummary())
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatText:
		fallthrough
	default:
		return s.formatText(w)
	}
}

func (s *Summary) formatText(w io.Writer) error {
	for _, result := range s.DocumentResults {
		status := "Success"
		if result.Error != nil {
			status = fmt.Sprintf("Failed: %v", result.Error)
		}
		_, err := fmt.Fprintf(w, "%s: %s (%d ms)\n", result.Document, status, result.Duration.Milliseconds())
		if err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, "--------------------------------------------------------------------------------"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Processed documents: %d (%.2f/s)\n", s.ProcessedDocuments, s.DocumentsPerSecond()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Succeeded documents: %d (%.1f%%)\n", s.SucceededDocuments, s.SuccessPercentage()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Failed documents:    %d (%.1f%%)\n", s.FailedDocuments, s.FailurePercentage()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Duration:            %d ms\n", s.TotalDuration.Milliseconds()); err != nil {
		return err
	}

	return nil
}

type encodedDocumentResult struct {
	Document             string `json:"document" yaml:"document"`
	DurationMilliseconds int64  `json:"duration_ms" yaml:"duration_ms"`
	Success              bool   `json:"success" yaml:"success"`
	Error                string `json:"error,omitempty" yaml:"error,omitempty"`
}

type encodedSummary struct {
	DocumentResults      []encodedDocumentResult `json:"document_results" yaml:"document_results"`
	ProcessedDocuments   int                     `json:"processed_documents" yaml:"processed_documents"`
	SucceededDocuments   int                     `json:"succeeded_documents" yaml:"succeeded_documents"`
	FailedDocuments      int                     `json:"failed_documents" yaml:"failed_documents"`
	DurationMilliseconds int64                   `json:"duration_ms" yaml:"duration_ms"`
	DocumentsPerSecond   float64                 `json:"documents_per_second" yaml:"documents_per_second"`
	SuccessPercentage    float64                 `json:"success_percentage" yaml:"success_percentage"`
	FailurePercentage    float64                 `json:"failure_percentage" yaml:"failure_percentage"`
}

func (s *Summary) toEncodedSummary() encodedSummary {
	results := make([]encodedDocumentResult, 0, len(s.DocumentResults))
	for _, result := range s.DocumentResults {
		item := encodedDocumentResult{
			Document:             result.Document,
			DurationMilliseconds: result.Duration.Milliseconds(),
			Success:              result.Error == nil,
		}
		if result.Error != nil {
			item.Error = result.Error.Error()
		}
		results = append(results, item)
	}

	return encodedSummary{
		DocumentResults:      results,
		ProcessedDocuments:   s.ProcessedDocuments,
		SucceededDocuments:   s.SucceededDocuments,
		FailedDocuments:      s.FailedDocuments,
		DurationMilliseconds: s.TotalDuration.Milliseconds(),
		DocumentsPerSecond:   s.DocumentsPerSecond(),
		SuccessPercentage:    s.SuccessPercentage(),
		FailurePercentage:    s.FailurePercentage(),
	}
}
