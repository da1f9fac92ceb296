package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/domain/repository"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
)

// CycleCounter numbers statistics cycles. *GameService satisfies it.
type CycleCounter interface {
	CurrentCycle(ctx context.Context) (int, error)
	NextCycle(ctx context.Context) (int, error)
}

// WinnerStat aggregates the wins of one display name
type WinnerStat struct {
	Name       string   `json:"name"`
	Wins       int      `json:"wins"`
	Percentage string   `json:"percentage"`
	WonAt      []string `json:"won_at"`
}

// SpinStats is the fairness summary over every recorded cycle
type SpinStats struct {
	TotalCycles           int                   `json:"total_cycles"`
	TotalSpins            int                   `json:"total_spins"`
	UniqueWinners         int                   `json:"unique_winners"`
	ExpectedWinsPerPerson string                `json:"expected_wins_per_person"`
	WinnerStats           []WinnerStat          `json:"winner_stats"`
	Entries               []entity.SpinLogEntry `json:"entries"`
}

// SpinLogService records one entry per (cycle, prize) and summarises them.
type SpinLogService struct {
	repo   repository.SpinLogRepository
	cycles CycleCounter
}

// NewSpinLogService creates the spin log service
func NewSpinLogService(repo repository.SpinLogRepository, cycles CycleCounter) *SpinLogService {
	return &SpinLogService{repo: repo, cycles: cycles}
}

// RecordSpin stores the selection under the current cycle. A second record
// for the same prize in the same cycle replaces the first.
func (s *SpinLogService) RecordSpin(ctx context.Context, record spinmanager.SpinRecord) error {
	cycle, err := s.cycles.CurrentCycle(ctx)
	if err != nil {
		return err
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := &entity.SpinLogEntry{
		Cycle:          cycle,
		PrizeRank:      record.PrizeRank,
		WinnerID:       record.Winner.ID,
		WinnerName:     record.Winner.Name,
		WinnerAlias:    record.Winner.Alias,
		WinnerIndex:    record.WinnerIndex,
		ActiveCount:    record.ActiveCount,
		TotalCount:     record.TotalCount,
		AllActiveNames: record.ActiveNames,
		Timestamp:      ts.UTC(),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return err
	}

	log.Debug().Int("cycle", cycle).Int("prize_rank", record.PrizeRank).Msg("[SpinLogService] Spin recorded")
	return nil
}

// StartNewCycle is called on game reset.
func (s *SpinLogService) StartNewCycle(ctx context.Context) error {
	cycle, err := s.cycles.NextCycle(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("cycle", cycle).Msg("[SpinLogService] New statistics cycle")
	return nil
}

// Stats computes the summary. Wins are grouped by alias when one is set.
func (s *SpinLogService) Stats(ctx context.Context) (*SpinStats, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(entries), nil
}

// Clear removes every entry. The cycle counter keeps counting.
func (s *SpinLogService) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	log.Info().Msg("[SpinLogService] Statistics cleared")
	return nil
}

func summarize(entries []entity.SpinLogEntry) *SpinStats {
	stats := &SpinStats{
		TotalSpins:            len(entries),
		ExpectedWinsPerPerson: "0",
		WinnerStats:           []WinnerStat{},
		Entries:               entries,
	}
	if stats.Entries == nil {
		stats.Entries = []entity.SpinLogEntry{}
	}

	cycles := make(map[int]struct{})
	index := make(map[string]int)
	for i := range entries {
		e := &entries[i]
		cycles[e.Cycle] = struct{}{}

		name := e.DisplayName()
		pos, ok := index[name]
		if !ok {
			pos = len(stats.WinnerStats)
			index[name] = pos
			stats.WinnerStats = append(stats.WinnerStats, WinnerStat{Name: name})
		}
		w := &stats.WinnerStats[pos]
		w.Wins++
		w.WonAt = append(w.WonAt, fmt.Sprintf("cycle_%d/prize_%d", e.Cycle, e.PrizeRank))
	}
	stats.TotalCycles = len(cycles)
	stats.UniqueWinners = len(stats.WinnerStats)

	sort.SliceStable(stats.WinnerStats, func(i, j int) bool {
		return stats.WinnerStats[i].Wins > stats.WinnerStats[j].Wins
	})
	for i := range stats.WinnerStats {
		w := &stats.WinnerStats[i]
		w.Percentage = fmt.Sprintf("%.1f%%", float64(w.Wins)/float64(stats.TotalSpins)*100)
	}
	if stats.TotalSpins > 0 {
		stats.ExpectedWinsPerPerson = fmt.Sprintf("%.2f", float64(stats.TotalSpins)/float64(stats.UniqueWinners))
	}
	return stats
}

// ExportXLSX writes the spin log and the per-winner summary as a workbook.
func (s *SpinLogService) ExportXLSX(ctx context.Context, w io.Writer) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const spinsSheet = "Spins"
	const winnersSheet = "Winners"
	if err := f.SetSheetName("Sheet1", spinsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(winnersSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(spinsSheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}
	headers := []interface{}{"Cycle", "Prize", "Timestamp", "Winner", "Alias", "Winner index", "Active", "Total", "Active names"}
	if err := sw.SetRow("A1", headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, e := range stats.Entries {
		alias := ""
		if e.WinnerAlias != nil {
			alias = *e.WinnerAlias
		}
		names := make([]string, len(e.AllActiveNames))
		for j, n := range e.AllActiveNames {
			names[j] = sanitizeForExcel(n)
		}
		row := []interface{}{
			e.Cycle,
			e.PrizeRank,
			e.Timestamp.Format(time.RFC3339),
			sanitizeForExcel(e.WinnerName),
			sanitizeForExcel(alias),
			e.WinnerIndex,
			e.ActiveCount,
			e.TotalCount,
			strings.Join(names, ", "),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", spinsSheet, err)
	}

	ww, err := f.NewStreamWriter(winnersSheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}
	if err := ww.SetRow("A1", []interface{}{"Name", "Wins", "Percentage", "Won at"}); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, ws := range stats.WinnerStats {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := ww.SetRow(cell, []interface{}{sanitizeForExcel(ws.Name), ws.Wins, ws.Percentage, strings.Join(ws.WonAt, ", ")}); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := ww.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", winnersSheet, err)
	}

	return f.Write(w)
}

// sanitizeForExcel escapes values that a spreadsheet would read as a formula
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
