package tasks

import (
	"fmt"

	"github.com/desertthunder/stylx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	OpenChannel Phase = iota
	SubmitJob
	Transform
	Complete
	RefreshGallery
	FetchGallery
	ExportImages
)

func (p Phase) String() string {
	switch p {
	case OpenChannel:
		return "open_channel"
	case SubmitJob:
		return "submit_job"
	case Transform:
		return "transform"
	case Complete:
		return "complete"
	case RefreshGallery:
		return "refresh_gallery"
	case FetchGallery:
		return "fetch_gallery"
	case ExportImages:
		return "export_images"
	default:
		return ""
	}
}

func openChannelUpdate(clientID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   OpenChannel,
		Step:    1,
		Total:   1,
		Message: "Opening progress channel...",
		Data:    clientID,
	}
}

func submitUpdate(content, style string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SubmitJob,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Uploading %s with %s...", content, style),
	}
}

// transformUpdate carries the percentage as both Step (rounded) and Data.
func transformUpdate(pct float64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Transform,
		Step:    int(pct + 0.5),
		Total:   100,
		Message: fmt.Sprintf("Transforming... %.0f%%", pct),
		Data:    pct,
	}
}

func completeUpdate(img models.ImageResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    100,
		Total:   100,
		Message: fmt.Sprintf("Transfer complete: %s", img.Path),
		Data:    img,
	}
}

func refreshUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshGallery,
		Step:    1,
		Total:   1,
		Message: "Refreshing gallery...",
	}
}

func fetchGalleryUpdate(page, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchGallery,
		Step:    page,
		Total:   total,
		Message: fmt.Sprintf("Fetching gallery page %d...", page),
	}
}

func exportCompletedUpdate(step, total int, name string, size int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportImages,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d bytes)", step, total, name, size),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportImages,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
