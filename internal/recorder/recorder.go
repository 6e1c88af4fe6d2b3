package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/sample"
)

const timestampLayout = time.RFC3339Nano

// Recorder appends samples to a comma-delimited, fixed-schema log.
// The header is written once at open; each row is flushed on append so
// a crash or failed write never leaves a torn row behind it.
type Recorder struct {
	file *os.File
	w    *csv.Writer
	topK int
}

// New creates (or truncates) the log at path and writes the header.
func New(path string, topK int) (*Recorder, error) {
	errFactory := errors.New()

	if topK < 1 {
		return nil, errFactory.New(errors.ErrInvalidTopCount)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrOpenLog, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header(topK)); err != nil {
		f.Close()
		return nil, errFactory.Wrap(ErrWriteRow, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, errFactory.Wrap(ErrWriteRow, err)
	}

	return &Recorder{file: f, w: w, topK: topK}, nil
}

// Append writes one sample as a single row. Errors are reported to the
// caller but the recorder stays usable; the in-memory series remains
// the source of truth for analysis.
func (r *Recorder) Append(s sample.Sample) error {
	errFactory := errors.New()

	if err := r.w.Write(row(s, r.topK)); err != nil {
		return errFactory.Wrap(ErrWriteRow, err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return errFactory.Wrap(ErrWriteRow, err)
	}

	return nil
}

func (r *Recorder) Close() error {
	r.w.Flush()
	if err := r.file.Close(); err != nil {
		return errors.New().Wrap(ErrCloseLog, err)
	}

	return nil
}

// header lays out the fixed schema: timestamp, the system metric set in
// canonical order, then the per-category top-K process blocks.
func header(topK int) []string {
	cols := []string{"Timestamp"}
	for _, d := range sample.Metrics() {
		cols = append(cols, colName(d.Name))
	}
	for i := 1; i <= topK; i++ {
		cols = append(cols,
			fmt.Sprintf("TopCpuProc%dName", i),
			fmt.Sprintf("TopCpuProc%dCpu", i),
			fmt.Sprintf("TopCpuProc%dMemMB", i),
			fmt.Sprintf("TopCpuProc%dUser", i),
		)
	}
	for i := 1; i <= topK; i++ {
		cols = append(cols,
			fmt.Sprintf("TopMemProc%dName", i),
			fmt.Sprintf("TopMemProc%dMemMB", i),
			fmt.Sprintf("TopMemProc%dCpu", i),
			fmt.Sprintf("TopMemProc%dUser", i),
		)
	}
	for i := 1; i <= topK; i++ {
		cols = append(cols,
			fmt.Sprintf("TopIoProc%dName", i),
			fmt.Sprintf("TopIoProc%dIoMBps", i),
			fmt.Sprintf("TopIoProc%dUser", i),
		)
	}

	return cols
}

func colName(metric string) string {
	return strings.ToUpper(metric[:1]) + metric[1:]
}

func row(s sample.Sample, topK int) []string {
	fields := []string{s.Timestamp.Format(timestampLayout)}
	for _, d := range sample.Metrics() {
		fields = append(fields, formatReading(d.Get(s.System)))
	}
	for i := 0; i < topK; i++ {
		if i < len(s.TopByCPU) {
			p := s.TopByCPU[i]
			fields = append(fields, p.Name, formatFloat(p.CPUPercent), formatFloat(p.MemoryMB), p.User)
		} else {
			fields = append(fields, "", "", "", "")
		}
	}
	for i := 0; i < topK; i++ {
		if i < len(s.TopByMemory) {
			p := s.TopByMemory[i]
			fields = append(fields, p.Name, formatFloat(p.MemoryMB), formatFloat(p.CPUPercent), p.User)
		} else {
			fields = append(fields, "", "", "", "")
		}
	}
	for i := 0; i < topK; i++ {
		if i < len(s.TopByIO) {
			p := s.TopByIO[i]
			fields = append(fields, p.Name, formatFloat(p.IoMBps), p.User)
		} else {
			fields = append(fields, "", "", "")
		}
	}

	return fields
}

// Unavailable readings become empty fields so re-parsing cannot mistake
// them for measured zeroes.
func formatReading(r sample.Reading) string {
	if !r.Available {
		return ""
	}

	return formatFloat(r.Value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Load re-parses a recorded log into a series. The top-K width is
// recovered from the header.
func Load(path string) (sample.Series, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrOpenLog, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errFactory.Wrap(ErrParseLog, err)
	}
	if len(records) == 0 {
		return nil, errFactory.New(ErrHeaderMissing)
	}

	metricCount := len(sample.Metrics())
	// Columns after timestamp and metrics split into 4+4+3 per rank slot.
	topK := (len(records[0]) - 1 - metricCount) / 11
	if topK < 1 || len(records[0]) != len(header(topK)) {
		return nil, errFactory.WithMessage(ErrParseLog, "log header does not match schema")
	}

	series := make(sample.Series, 0, len(records)-1)
	for _, record := range records[1:] {
		s, err := parseRow(record, topK)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}

	return series, nil
}

func parseRow(record []string, topK int) (sample.Sample, error) {
	errFactory := errors.New()

	ts, err := time.Parse(timestampLayout, record[0])
	if err != nil {
		return sample.Sample{}, errFactory.Wrap(ErrParseLog, err)
	}

	s := sample.Sample{Timestamp: ts}

	descriptors := sample.Metrics()
	for i, d := range descriptors {
		r, err := parseReading(record[1+i])
		if err != nil {
			return sample.Sample{}, err
		}
		d.Set(&s.System, r)
	}

	col := 1 + len(descriptors)
	for i := 0; i < topK; i++ {
		name, cpuStr, memStr, user := record[col], record[col+1], record[col+2], record[col+3]
		col += 4
		if name == "" {
			continue
		}
		s.TopByCPU = append(s.TopByCPU, sample.ProcessRank{
			Name:       name,
			User:       user,
			CPUPercent: parseFloat(cpuStr),
			MemoryMB:   parseFloat(memStr),
		})
	}
	for i := 0; i < topK; i++ {
		name, memStr, cpuStr, user := record[col], record[col+1], record[col+2], record[col+3]
		col += 4
		if name == "" {
			continue
		}
		s.TopByMemory = append(s.TopByMemory, sample.ProcessRank{
			Name:       name,
			User:       user,
			CPUPercent: parseFloat(cpuStr),
			MemoryMB:   parseFloat(memStr),
		})
	}
	for i := 0; i < topK; i++ {
		name, ioStr, user := record[col], record[col+1], record[col+2]
		col += 3
		if name == "" {
			continue
		}
		s.TopByIO = append(s.TopByIO, sample.ProcessRank{
			Name:   name,
			User:   user,
			IoMBps: parseFloat(ioStr),
		})
	}

	return s, nil
}

func parseReading(field string) (sample.Reading, error) {
	if field == "" {
		return sample.Unavailable(), nil
	}

	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return sample.Reading{}, errors.New().Wrap(ErrParseLog, err)
	}

	return sample.Avail(v), nil
}

func parseFloat(field string) float64 {
	v, _ := strconv.ParseFloat(field, 64)
	return v
}
