package mnistpipe

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/gorgonia/mnistpipe/model"
	"github.com/gorgonia/mnistpipe/pipeline"
)

// Statistics accumulates the outcomes of a run.
type Statistics struct {
	// Confusion[label][prediction] counts samples.
	Confusion  [model.Classes][model.Classes]int
	Total      int
	Mismatches int
	Unknown    int // samples whose label is not a class
}

func (s *Statistics) record(o pipeline.Outcome) {
	s.Total++
	if o.Prediction != o.Label {
		s.Mismatches++
	}
	if o.Label < 0 || o.Label >= model.Classes {
		s.Unknown++
		return
	}
	s.Confusion[o.Label][o.Prediction]++
}

// ClassAccuracy returns the fraction of samples labelled class that were predicted as class.
func (s *Statistics) ClassAccuracy(class int) float64 {
	var total int
	for _, n := range s.Confusion[class] {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(s.Confusion[class][class]) / float64(total)
}

// Dump writes the confusion matrix as CSV: a header row of predictions, then one row per
// label followed by that label's accuracy.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	header := []string{"label"}
	for c := 0; c < model.Classes; c++ {
		header = append(header, strconv.Itoa(c))
	}
	header = append(header, "accuracy")
	records := [][]string{header}
	for label, row := range s.Confusion {
		record := []string{strconv.Itoa(label)}
		for _, n := range row {
			record = append(record, strconv.Itoa(n))
		}
		record = append(record, strconv.FormatFloat(s.ClassAccuracy(label), 'f', 3, 64))
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
