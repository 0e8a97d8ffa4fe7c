// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package models

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
)

// Deletion reasons written to the deletion log.
const (
	ReasonRemovedFromCollection = "removed from remote collection"
	ReasonReportedGone          = "reported removed by remote"
)

// Collection is a remote favorites folder.
type Collection struct {
	ID          int64      `json:"id"`
	RemoteID    string     `json:"remote_id"`
	Title       string     `json:"title"`
	OwnerID     string     `json:"owner_id"`
	Description string     `json:"description"`
	CoverURL    string     `json:"cover_url"`
	MediaCount  int        `json:"media_count"`
	LastSynced  *time.Time `json:"last_synced,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Uploader is the account that published an item.
type Uploader struct {
	RemoteID  string `json:"remote_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	JumpLink  string `json:"jump_link,omitempty"`
}

// Item is a single media entry. ShortCode is unique across the store.
type Item struct {
	ID             int64           `json:"id"`
	RemoteID       string          `json:"remote_id"`
	ShortCode      string          `json:"short_code"`
	Kind           int             `json:"kind"`
	Title          string          `json:"title"`
	CoverURL       string          `json:"cover_url"`
	LocalCoverPath string          `json:"local_cover_path,omitempty"`
	Intro          string          `json:"intro"`
	PageCount      int             `json:"page_count"`
	Duration       int             `json:"duration"`
	UploaderID     string          `json:"uploader_id"`
	Attr           int             `json:"attr"`
	CreatedAtSrc   *time.Time      `json:"ctime,omitempty"`
	PublishedAt    *time.Time      `json:"pubtime,omitempty"`
	FirstCID       string          `json:"first_cid,omitempty"`
	SeasonInfo     json.RawMessage `json:"season_info,omitempty"`
	OfficialInfo   json.RawMessage `json:"official_info,omitempty"`
	Link           string          `json:"link,omitempty"`
	MediaListLink  string          `json:"media_list_link,omitempty"`
	IsDeleted      bool            `json:"is_deleted"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsOfficial reports whether the item is an officially-produced work.
// Only the presence of the official-work payload matters.
func (i *Item) IsOfficial() bool {
	return HasPayload(i.OfficialInfo)
}

// SameContent reports whether the remotely-sourced mutable fields of two
// items are equal. Identity, local cover path, deletion state and
// bookkeeping timestamps are ignored.
func (i *Item) SameContent(o *Item) bool {
	return i.RemoteID == o.RemoteID &&
		i.Kind == o.Kind &&
		i.Title == o.Title &&
		i.CoverURL == o.CoverURL &&
		i.Intro == o.Intro &&
		i.PageCount == o.PageCount &&
		i.Duration == o.Duration &&
		i.UploaderID == o.UploaderID &&
		i.Attr == o.Attr &&
		sameTime(i.CreatedAtSrc, o.CreatedAtSrc) &&
		sameTime(i.PublishedAt, o.PublishedAt) &&
		i.FirstCID == o.FirstCID &&
		samePayload(i.SeasonInfo, o.SeasonInfo) &&
		samePayload(i.OfficialInfo, o.OfficialInfo) &&
		i.Link == o.Link &&
		i.MediaListLink == o.MediaListLink
}

// HasPayload reports whether raw holds a non-empty JSON value. Absent, null,
// empty string, empty object and empty array all count as empty.
func HasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return false
	default:
		return true
	}
}

func samePayload(a, b json.RawMessage) bool {
	if !HasPayload(a) && !HasPayload(b) {
		return true
	}
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Membership links an item to a collection.
type Membership struct {
	ID           int64      `json:"id"`
	CollectionID int64      `json:"collection_id"`
	ItemID       int64      `json:"item_id"`
	FavTime      *time.Time `json:"fav_time,omitempty"`
	FirstSeen    time.Time  `json:"first_seen"`
	LastSeen     time.Time  `json:"last_seen"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`
}

// ItemStats is a point-in-time snapshot of an item's counters.
type ItemStats struct {
	ItemID     int64     `json:"item_id"`
	Collect    int64     `json:"collect"`
	Play       int64     `json:"play"`
	Danmaku    int64     `json:"danmaku"`
	Reply      int64     `json:"reply"`
	ViewText   string    `json:"view_text,omitempty"`
	VT         int64     `json:"vt"`
	PlaySwitch int64     `json:"play_switch"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SameCounters reports whether two snapshots carry identical counters.
func (s *ItemStats) SameCounters(o *ItemStats) bool {
	return s.Collect == o.Collect &&
		s.Play == o.Play &&
		s.Danmaku == o.Danmaku &&
		s.Reply == o.Reply &&
		s.ViewText == o.ViewText &&
		s.VT == o.VT &&
		s.PlaySwitch == o.PlaySwitch
}

// DeletionRecord is an immutable audit entry for a detected deletion.
type DeletionRecord struct {
	ID                 int64     `json:"id"`
	CollectionRemoteID string    `json:"collection_remote_id"`
	CollectionTitle    string    `json:"collection_title"`
	ShortCode          string    `json:"short_code"`
	Title              string    `json:"title"`
	UploaderName       string    `json:"uploader_name"`
	Reason             string    `json:"reason"`
	DeletedAt          time.Time `json:"deleted_at"`
}

// DeletionSummary is the short form of a deletion carried in run results.
type DeletionSummary struct {
	CollectionID string `json:"collection_id"`
	ShortCode    string `json:"short_code"`
	Title        string `json:"title"`
	Reason       string `json:"reason"`
}
