package workflow

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// Record is one finished stage for one work unit.
type Record struct {
	BurstID      string  `csv:"burst_id"`
	Date         string  `csv:"date"`
	Polarization string  `csv:"polarization"`
	Stage        string  `csv:"stage"`
	Seconds      float64 `csv:"seconds"`
	Output       string  `csv:"output"`
}

// Summary collects per-stage records across a run and writes them as the
// run_summary.csv next to the products. A nil Summary drops every record.
type Summary struct {
	mu      sync.Mutex
	records []Record
}

func NewSummary() *Summary {
	return &Summary{}
}

func (s *Summary) Add(burstID, date, polarization, stage, output string, start time.Time) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{
		BurstID:      burstID,
		Date:         date,
		Polarization: polarization,
		Stage:        stage,
		Seconds:      time.Since(start).Seconds(),
		Output:       output,
	})
}

func (s *Summary) Records() []Record {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Write saves the collected records as CSV.
func (s *Summary) Write(path string) error {
	if s == nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create run summary %s: %v", path, err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := gocsv.MarshalFile(&s.records, f); err != nil {
		return fmt.Errorf("failed to write run summary %s: %v", path, err)
	}
	return nil
}
