package imgur

import (
	"encoding/json"
	"fmt"

	"imgurcomments/pkg/errors"
)

// Envelope is the top-level wrapper every API response uses
type Envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Status  int             `json:"status"`
}

// apiError is the shape of Data on unsuccessful responses
type apiError struct {
	Error   interface{} `json:"error"`
	Request string      `json:"request"`
	Method  string      `json:"method"`
}

// Comment is a single comment authored by an account
type Comment struct {
	ID            int64   `json:"id" yaml:"id"`
	ImageID       string  `json:"image_id" yaml:"image_id"`
	ParentID      int64   `json:"parent_id" yaml:"parent_id"`
	Author        string  `json:"author" yaml:"author"`
	AuthorID      int64   `json:"author_id,omitempty" yaml:"author_id,omitempty"`
	Text          string  `json:"comment" yaml:"comment"`
	Datetime      int64   `json:"datetime" yaml:"datetime"`
	Ups           int     `json:"ups" yaml:"ups"`
	Downs         int     `json:"downs" yaml:"downs"`
	Points        int     `json:"points" yaml:"points"`
	OnAlbum       bool    `json:"on_album,omitempty" yaml:"on_album,omitempty"`
	AlbumCover    string  `json:"album_cover,omitempty" yaml:"album_cover,omitempty"`
	Vote          *string `json:"vote,omitempty" yaml:"vote,omitempty"`
	Platform      string  `json:"platform,omitempty" yaml:"platform,omitempty"`
	Deleted       bool    `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	HasAdminBadge bool    `json:"has_admin_badge,omitempty" yaml:"has_admin_badge,omitempty"`
}

// IsRoot reports whether the comment is a top-level reply to the post
func (c Comment) IsRoot() bool {
	return c.ParentID == 0
}

// wireComment mirrors Comment with pointer fields so missing keys can be told
// apart from zero values
type wireComment struct {
	ID            *int64  `json:"id"`
	ImageID       string  `json:"image_id"`
	ParentID      int64   `json:"parent_id"`
	Author        string  `json:"author"`
	AuthorID      int64   `json:"author_id"`
	Text          string  `json:"comment"`
	Datetime      *int64  `json:"datetime"`
	Ups           int     `json:"ups"`
	Downs         int     `json:"downs"`
	Points        *int    `json:"points"`
	OnAlbum       bool    `json:"on_album"`
	AlbumCover    string  `json:"album_cover"`
	Vote          *string `json:"vote"`
	Platform      string  `json:"platform"`
	Deleted       bool    `json:"deleted"`
	HasAdminBadge bool    `json:"has_admin_badge"`
}

func (w wireComment) toComment(index int) (Comment, error) {
	if w.ID == nil {
		return Comment{}, errors.New(errors.ErrorTypeMalformed, 0, "comment %d has no id", index)
	}
	if w.Datetime == nil {
		return Comment{}, errors.New(errors.ErrorTypeMalformed, 0, "comment %d (id %d) has no datetime", index, *w.ID)
	}

	points := w.Ups - w.Downs
	if w.Points != nil {
		points = *w.Points
	}

	return Comment{
		ID:            *w.ID,
		ImageID:       w.ImageID,
		ParentID:      w.ParentID,
		Author:        w.Author,
		AuthorID:      w.AuthorID,
		Text:          w.Text,
		Datetime:      *w.Datetime,
		Ups:           w.Ups,
		Downs:         w.Downs,
		Points:        points,
		OnAlbum:       w.OnAlbum,
		AlbumCover:    w.AlbumCover,
		Vote:          w.Vote,
		Platform:      w.Platform,
		Deleted:       w.Deleted,
		HasAdminBadge: w.HasAdminBadge,
	}, nil
}

// Account is the subset of account data needed to key the cache
type Account struct {
	ID         int64   `json:"id"`
	URL        string  `json:"url"`
	Reputation float64 `json:"reputation"`
	Created    int64   `json:"created"`
}

// IDString returns the account id as used for cache keys
func (a Account) IDString() string {
	return fmt.Sprintf("%d", a.ID)
}
