// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package source

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/models"
)

// Wire types for the remote JSON API. Only fields the mirror stores are decoded.

type folderListData struct {
	Count int      `json:"count"`
	List  []folder `json:"list"`
}

type folder struct {
	ID         int64  `json:"id"`
	MID        int64  `json:"mid"`
	Title      string `json:"title"`
	Intro      string `json:"intro"`
	Cover      string `json:"cover"`
	MediaCount int    `json:"media_count"`
	Upper      *upper `json:"upper,omitempty"`
}

func (f folder) toRemote() RemoteCollection {
	owner := f.MID
	if owner == 0 && f.Upper != nil {
		owner = f.Upper.MID
	}
	return RemoteCollection{
		ID:          strconv.FormatInt(f.ID, 10),
		Title:       f.Title,
		OwnerID:     formatID(owner),
		Description: f.Intro,
		CoverURL:    f.Cover,
		MediaCount:  f.MediaCount,
	}
}

type upper struct {
	MID      int64  `json:"mid"`
	Name     string `json:"name"`
	Face     string `json:"face"`
	JumpLink string `json:"jump_link"`
}

func (u upper) toModel() models.Uploader {
	return models.Uploader{
		RemoteID:  formatID(u.MID),
		Name:      u.Name,
		AvatarURL: u.Face,
		JumpLink:  u.JumpLink,
	}
}

type resourceListData struct {
	Info    *folder `json:"info"`
	Medias  []media `json:"medias"`
	HasMore bool    `json:"has_more"`
}

type cntInfo struct {
	Collect    int64  `json:"collect"`
	Play       int64  `json:"play"`
	Danmaku    int64  `json:"danmaku"`
	Reply      int64  `json:"reply"`
	ViewText   string `json:"view_text_1"`
	VT         int64  `json:"vt"`
	PlaySwitch int64  `json:"play_switch"`
}

type media struct {
	ID            int64           `json:"id"`
	Type          int             `json:"type"`
	Title         string          `json:"title"`
	Cover         string          `json:"cover"`
	Intro         string          `json:"intro"`
	Page          int             `json:"page"`
	Duration      int             `json:"duration"`
	Upper         upper           `json:"upper"`
	Attr          int             `json:"attr"`
	CntInfo       cntInfo         `json:"cnt_info"`
	Link          string          `json:"link"`
	Ctime         int64           `json:"ctime"`
	Pubtime       int64           `json:"pubtime"`
	FavTime       int64           `json:"fav_time"`
	BvID          string          `json:"bv_id"`
	BVID          string          `json:"bvid"`
	Season        json.RawMessage `json:"season"`
	OGV           json.RawMessage `json:"ogv"`
	UGC           *ugc            `json:"ugc"`
	MediaListLink string          `json:"media_list_link"`
}

type ugc struct {
	FirstCID int64 `json:"first_cid"`
}

// isInvalidated reports whether the remote shows an entry as invalidated.
func isInvalidated(title string, attr int) bool {
	return title == invalidTitle || attr == 1 || attr == 9
}

func (m *media) toEntry() Entry {
	code := m.BvID
	if code == "" {
		code = m.BVID
	}
	it := models.Item{
		RemoteID:      strconv.FormatInt(m.ID, 10),
		ShortCode:     code,
		Kind:          m.Type,
		Title:         m.Title,
		CoverURL:      m.Cover,
		Intro:         m.Intro,
		PageCount:     m.Page,
		Duration:      m.Duration,
		UploaderID:    formatID(m.Upper.MID),
		Attr:          m.Attr,
		CreatedAtSrc:  unixPtr(m.Ctime),
		PublishedAt:   unixPtr(m.Pubtime),
		SeasonInfo:    payload(m.Season),
		OfficialInfo:  payload(m.OGV),
		Link:          m.Link,
		MediaListLink: m.MediaListLink,
	}
	if m.UGC != nil && m.UGC.FirstCID != 0 {
		it.FirstCID = strconv.FormatInt(m.UGC.FirstCID, 10)
	}
	return Entry{
		Item:     it,
		Uploader: m.Upper.toModel(),
		Stats: models.ItemStats{
			Collect:    m.CntInfo.Collect,
			Play:       m.CntInfo.Play,
			Danmaku:    m.CntInfo.Danmaku,
			Reply:      m.CntInfo.Reply,
			ViewText:   m.CntInfo.ViewText,
			VT:         m.CntInfo.VT,
			PlaySwitch: m.CntInfo.PlaySwitch,
		},
		FavTime:     unixPtr(m.FavTime),
		Unavailable: isInvalidated(m.Title, m.Attr),
	}
}

type viewData struct {
	BVID      string          `json:"bvid"`
	AID       int64           `json:"aid"`
	Videos    int             `json:"videos"`
	Pic       string          `json:"pic"`
	Title     string          `json:"title"`
	PubDate   int64           `json:"pubdate"`
	Ctime     int64           `json:"ctime"`
	Desc      string          `json:"desc"`
	Duration  int             `json:"duration"`
	Owner     upper           `json:"owner"`
	CID       int64           `json:"cid"`
	UGCSeason json.RawMessage `json:"ugc_season"`
	Stat      struct {
		View     int64 `json:"view"`
		Danmaku  int64 `json:"danmaku"`
		Reply    int64 `json:"reply"`
		Favorite int64 `json:"favorite"`
		VT       int64 `json:"vt"`
	} `json:"stat"`
}

func (v *viewData) toEntry() Entry {
	it := models.Item{
		RemoteID:     strconv.FormatInt(v.AID, 10),
		ShortCode:    v.BVID,
		Kind:         2,
		Title:        v.Title,
		CoverURL:     v.Pic,
		Intro:        v.Desc,
		PageCount:    v.Videos,
		Duration:     v.Duration,
		UploaderID:   formatID(v.Owner.MID),
		CreatedAtSrc: unixPtr(v.Ctime),
		PublishedAt:  unixPtr(v.PubDate),
		SeasonInfo:   payload(v.UGCSeason),
	}
	if v.CID != 0 {
		it.FirstCID = strconv.FormatInt(v.CID, 10)
	}
	return Entry{
		Item:     it,
		Uploader: v.Owner.toModel(),
		Stats: models.ItemStats{
			Collect: v.Stat.Favorite,
			Play:    v.Stat.View,
			Danmaku: v.Stat.Danmaku,
			Reply:   v.Stat.Reply,
			VT:      v.Stat.VT,
		},
	}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// payload keeps a blob only when it carries content.
func payload(raw json.RawMessage) json.RawMessage {
	if !models.HasPayload(raw) {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
