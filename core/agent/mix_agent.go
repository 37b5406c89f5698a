package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"BeatFlow/core/workspace"
	"BeatFlow/logger"
)

// 混音建议代理:读取工作台的音轨快照,生成文本形式的混音建议。
// 当前为内置规则实现,接口留给将来接外部模型。

// MixRequest carries the session context the agent analyzes.
type MixRequest struct {
	ProjectTitle string
	BeatTitle    string
	BPM          int
	Tracks       []workspace.Track
}

// Advisor produces mixing suggestions for a workspace session.
type Advisor interface {
	Suggest(ctx context.Context, req MixRequest) (string, error)
}

// MixAgent is the built-in rule-based Advisor.
type MixAgent struct {
	delay time.Duration // simulated analysis latency
}

// NewMixAgent creates an agent. A zero delay responds immediately.
func NewMixAgent(delay time.Duration) *MixAgent {
	return &MixAgent{delay: delay}
}

// Suggest analyzes the track layout and returns advice. Honors context
// cancellation during the analysis window.
func (a *MixAgent) Suggest(ctx context.Context, req MixRequest) (string, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var b strings.Builder
	title := req.ProjectTitle
	if title == "" {
		title = "your project"
	}
	fmt.Fprintf(&b, "Mix notes for %s:\n", title)

	overlays := 0
	unbound := 0
	var loudest *workspace.Track
	for i := range req.Tracks {
		t := &req.Tracks[i]
		if t.Kind == workspace.KindBeat {
			continue
		}
		overlays++
		if t.Source == "" {
			unbound++
			continue
		}
		if loudest == nil || t.Volume > loudest.Volume {
			loudest = t
		}
	}

	switch {
	case overlays == 0:
		b.WriteString("- Record or import a vocal take to start layering over the beat.\n")
	case unbound == overlays:
		b.WriteString("- Your lanes are empty. Load a take before mixing.\n")
	default:
		if loudest != nil && loudest.Volume > 85 {
			fmt.Fprintf(&b, "- %q is running hot at %d. Pull it back to leave headroom for the beat.\n",
				loudest.Name, loudest.Volume)
		}
		if allCentered(req.Tracks) && overlays > 1 {
			b.WriteString("- Every lane sits dead center. Pan doubles slightly left and right to widen the image.\n")
		}
		b.WriteString("- Nudge vocal clips onto the grid; offsets under a tenth of a second read as loose timing.\n")
	}
	if req.BPM > 0 {
		fmt.Fprintf(&b, "- Set any delay throws to the tempo (%d BPM) so tails land on the beat.\n", req.BPM)
	}
	b.WriteString("- Reference the mix at low volume before bouncing.")

	logger.Info("生成混音建议",
		logger.String("project", req.ProjectTitle),
		logger.Int("tracks", len(req.Tracks)))
	return b.String(), nil
}

func allCentered(tracks []workspace.Track) bool {
	for _, t := range tracks {
		if t.Pan != 0 {
			return false
		}
	}
	return true
}
