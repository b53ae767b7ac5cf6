package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/moadil/internal/model"
)

// SnapshotLister is the part of the store the history report reads from.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, cfg model.HistoryConfig) ([]model.Snapshot, error)
}

// History contains precomputed data for history rendering.
type History struct {
	Snapshots []model.Snapshot
	Trend     []float64
	Best      float64
	Latest    float64
}

// BuildHistory loads snapshots oldest first and smooths their averages.
func BuildHistory(ctx context.Context, st SnapshotLister, cfg model.HistoryConfig) (History, error) {
	snapshots, err := st.ListSnapshots(ctx, cfg)
	if err != nil {
		return History{}, err
	}
	if cfg.Last > 0 && len(snapshots) > cfg.Last {
		snapshots = snapshots[len(snapshots)-cfg.Last:]
	}
	h := History{Snapshots: snapshots}
	if len(snapshots) == 0 {
		return h, nil
	}
	averages := make([]float64, len(snapshots))
	for i, s := range snapshots {
		averages[i] = s.Average
		if s.Average > h.Best {
			h.Best = s.Average
		}
	}
	h.Latest = averages[len(averages)-1]
	h.Trend = MovingAverage(averages, cfg.CurveWindow)
	return h, nil
}

// RenderHistory prints the snapshot table and a sparkline of the trend.
func RenderHistory(w io.Writer, h History, decimals int) error {
	if len(h.Snapshots) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots found.")
		return err
	}
	headers := []string{"Taken", "Level", "Branch", "Average", "Progress", "Note"}
	rows := make([][]string, 0, len(h.Snapshots))
	for _, s := range h.Snapshots {
		rows = append(rows, []string{
			s.TakenAt.Local().Format("2006-01-02 15:04"),
			string(s.Level),
			s.BranchID,
			FormatAverage(s.Average, decimals),
			fmt.Sprintf("%.0f%%", s.Progress),
			s.Note,
		})
	}
	rightAlign := map[int]bool{3: true, 4: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Latest: %s  Best: %s\n", FormatAverage(h.Latest, decimals), FormatAverage(h.Best, decimals)); err != nil {
		return err
	}
	if len(h.Trend) > 1 {
		if _, err := fmt.Fprintf(w, "Trend: [%s]\n", Sparkline(h.Trend)); err != nil {
			return err
		}
	}
	return nil
}
