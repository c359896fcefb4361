package httpserver

import (
	"github.com/jk100/archiv-admin/internal/media"
	"github.com/jk100/archiv-admin/internal/model"
)

// thumbSize is the edge length of table thumbnails.
const thumbSize = 150

// objectRow is a catalog record with its rendered columns.
type objectRow struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	StatusLabel string       `json:"status_label"`
	RatingLabel string       `json:"rating_label"`
	Category    string       `json:"category,omitempty"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Media       []mediaRow   `json:"media"`
	Record      model.Objekt `json:"record"`
}

type mediaRow struct {
	FileID   string     `json:"file_id"`
	Kind     media.Kind `json:"kind"`
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	Download string     `json:"download"`
}

func newObjectRow(rec model.Objekt, categories map[string]string, base, token string) objectRow {
	status := rec.String(model.FieldStatus)
	row := objectRow{
		ID:          rec.ID(),
		Name:        rec.String(model.FieldName),
		Status:      status,
		StatusLabel: model.StatusLabel(status),
		RatingLabel: model.RatingLabel(rec.Rating()),
		Media:       []mediaRow{},
		Record:      rec,
	}
	if c := rec.String(model.FieldCategory); c != "" {
		row.Category = categories[c]
	}

	primary := media.Parse(rec[model.FieldPrimaryImage])
	row.Thumbnail = media.ThumbnailURL(primary, base, token, thumbSize, thumbSize)

	refs := append([]media.Ref{primary}, media.ParseList(rec[model.FieldSecondaryImages])...)
	for _, ref := range refs {
		id := ref.FileID()
		if id == "" {
			continue
		}
		row.Media = append(row.Media, mediaRow{
			FileID:   id,
			Kind:     media.Classify(ref),
			Name:     media.DisplayName(ref),
			URL:      media.AssetURL(ref, base, token, false),
			Download: media.AssetURL(ref, base, token, true),
		})
	}
	return row
}
