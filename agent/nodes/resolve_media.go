package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

// ResolveMedia enriches image messages with analyzable content from the
// media-storage collaborator. Resolution failure degrades the message to
// its caption; an image with neither caption nor resolvable content still
// gets a turn (the general agent will ask what it is).
func ResolveMedia(
	ctx context.Context,
	in *GraphState,
	media contractx.MediaResolver,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Message.Kind != contractx.KindImage || media == nil {
		return in, nil
	}
	ref := strings.TrimSpace(in.Message.Payload.MediaRef)
	if ref == "" {
		return in, nil
	}

	content, err := media.Resolve(ctx, ref)
	if err != nil {
		log.Debug().Err(err).Str("media_ref", ref).Msg("media resolution failed, using caption only")
		if in.Text == "" {
			in.Text = "The user sent an image."
		}
		return in, nil
	}

	parts := make([]string, 0, 3)
	if in.Text != "" {
		parts = append(parts, in.Text)
	}
	if content.Caption != "" {
		parts = append(parts, "The image shows: "+content.Caption)
	}
	if len(content.Labels) > 0 {
		parts = append(parts, "Image labels: "+strings.Join(content.Labels, ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "The user sent an image.")
	}
	in.Text = strings.Join(parts, " ")
	return in, nil
}
