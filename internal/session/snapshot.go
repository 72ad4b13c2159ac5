package session

import (
	"github.com/forPelevin/stickercut/internal/domain/style"
	"github.com/forPelevin/stickercut/internal/types"
	"github.com/forPelevin/stickercut/internal/usecase"
)

type Snapshot struct {
	ID             string           `json:"id"`
	Audio          *AudioView       `json:"audio,omitempty"`
	Selection      *types.Selection `json:"selection"`
	// SelectionState is "no_selection" or "has_selection".
	SelectionState string           `json:"selection_state"`
	Style          StyleView        `json:"style"`
	Export         ExportView       `json:"export"`
	CanExport      bool             `json:"can_export"`
}

type AudioView struct {
	Name     string  `json:"name"`
	Bytes    int     `json:"bytes"`
	Duration float64 `json:"duration"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
}

type StyleView struct {
	style.Spec
	HasBackgroundImage bool `json:"has_background_image"`
}

type ExportView struct {
	State     usecase.State       `json:"state"`
	Processor usecase.State       `json:"processor"`
	Error     string              `json:"error,omitempty"`
	Last      *types.ExportRecord `json:"last,omitempty"`
}

func (s *Session) snapshotLocked() Snapshot {
	s.touchLocked()

	snap := Snapshot{
		ID: s.id,
		Style: StyleView{
			Spec:               style.FromStyle(s.style),
			HasBackgroundImage: s.style.BackgroundImage != nil,
		},
		Export: ExportView{
			State: s.exporter.State(),
			Last:  s.last,
		},
	}
	if s.d.Processor != nil {
		snap.Export.Processor = s.d.Processor.State()
	}
	if err := s.exporter.LastErr(); err != nil {
		// Causes stay in the logs; clients see the generic message.
		snap.Export.Error = usecase.ErrProcessingFailed.Error()
	}
	if s.audio != nil {
		snap.Audio = &AudioView{
			Name:     s.audio.Name,
			Bytes:    len(s.audio.Data),
			Duration: s.info.Duration,
			Title:    s.info.Title,
			Artist:   s.info.Artist,
		}
	}
	if cur, ok := s.slot.Current(); ok {
		snap.Selection = &cur
	}
	snap.SelectionState = s.slot.State().String()
	snap.CanExport = snap.Audio != nil && snap.Selection != nil &&
		snap.Export.Processor == usecase.StateReady &&
		snap.Export.State != usecase.StateExporting
	return snap
}
