// Package site holds the profile and contact content of the site as one
// JSON object, plus the crawler files generated from the manifest.
package site

import (
	"context"
	"encoding/json"

	"reelcms/internal/docstore"
)

// DocumentName is the name of the site document on its backend.
const DocumentName = "site"

// Content is the site document. Top-level keys are sections; updates
// replace whole sections.
type Content map[string]json.RawMessage

// Defaults is written when no site document exists yet.
func Defaults() Content {
	return Content{
		"profile": json.RawMessage(`{
  "title": "Kuroki Ryota (TROY)",
  "tag": "Film Director / 東京",
  "intro": "モード、ストリート、カルチャーを横断し、音楽とファッションの文脈でエッジのある映像表現を探求する映像監督。",
  "detail": "ミュージックビデオ、キャンペーン、ショートフィルム、インスタレーションまで幅広くディレクションを行い、愛のある圧倒的な作品を目指しています。",
  "credits": ["領域: MV / Brand Film / Campaign / Experimental", "拠点: 東京（国内外出張可）", "別名義: TROY"]
}`),
		"info": json.RawMessage(`{
  "email": "hello@example.com",
  "instagramUrl": "https://www.instagram.com/troy_loss/#",
  "instagramHandle": "@troy_loss",
  "availability": ["企画・脚本・編集まで一貫対応可", "日英コミュニケーション（要調整）", "国内外ロケーション手配（要相談）"],
  "press": ["掲載・受賞歴はここに追記"]
}`),
	}
}

type Store struct {
	Doc *docstore.Doc
}

func NewStore(doc *docstore.Doc) *Store {
	return &Store{Doc: doc}
}

// Init writes the defaults when the document does not exist.
func (s *Store) Init(ctx context.Context) (bool, error) {
	return s.Doc.Ensure(ctx, Defaults())
}

func (s *Store) Get(ctx context.Context) (Content, error) {
	var c Content
	if err := s.Doc.Read(ctx, &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = Content{}
	}
	return c, nil
}

// Merge overlays patch onto the stored document key by key and returns the
// result.
func (s *Store) Merge(ctx context.Context, patch Content) (Content, error) {
	var c Content
	err := s.Doc.Update(ctx, &c, func() (bool, error) {
		if c == nil {
			c = Content{}
		}
		for k, v := range patch {
			c[k] = v
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
