// Package artifact turns persisted timetables into downloadable
// documents. The engine only depends on the Renderer contract; the
// format behind the returned reference is replaceable.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"service-scheduling/internal/domain"
)

// Renderer produces a downloadable representation of a timetable and
// returns an opaque, stable reference to it.
type Renderer interface {
	Render(ctx context.Context, tt domain.Timetable) (string, error)
}

type slotRow struct {
	ItemID    int64  `csv:"item_id"`
	Day       string `csv:"day"`
	StartTime string `csv:"start_time"`
	EndTime   string `csv:"end_time"`
	VenueID   int64  `csv:"venue_id"`
}

// CSVRenderer writes one CSV file per timetable under its output
// directory and returns the file path as the artifact reference.
type CSVRenderer struct {
	dir string
}

func NewCSVRenderer(dir string) (*CSVRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &CSVRenderer{dir: dir}, nil
}

func (r *CSVRenderer) Render(ctx context.Context, tt domain.Timetable) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rows := make([]slotRow, 0, len(tt.Slots))
	for _, slot := range tt.Slots {
		rows = append(rows, slotRow{
			ItemID:    slot.ItemID,
			Day:       slot.Day.String(),
			StartTime: domain.FormatMinute(slot.StartMinute),
			EndTime:   domain.FormatMinute(slot.EndMinute),
			VenueID:   slot.VenueID,
		})
	}

	name := fmt.Sprintf("%s-%s.csv", tt.Title, tt.GeneratedAt.Format("20060102T150405"))
	path := filepath.Join(r.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact %s: %w", name, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}
