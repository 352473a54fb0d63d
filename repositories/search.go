package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"chat-relay/domain"

	"github.com/blugelabs/bluge"
)

type ISearchIndex interface {
	Index(msg domain.Message) error
	Search(ctx context.Context, viewerID, terms string, limit int) ([]uint64, error)
}

// SearchIndex maintains a Bluge full-text index over message bodies,
// alongside the BadgerDB log. Results are message ids; the caller loads
// the records and applies per-viewer visibility.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

// Index adds or replaces the document for a message. Sender and receiver
// are indexed as keywords so a search can be restricted to conversations
// the requester actually participates in.
func (s *SearchIndex) Index(msg domain.Message) error {
	doc := bluge.NewDocument(strconv.FormatUint(msg.ID, 10)).
		AddField(bluge.NewTextField("body", msg.Body)).
		AddField(bluge.NewKeywordField("sender", msg.SenderID)).
		AddField(bluge.NewKeywordField("receiver", msg.ReceiverID))
	return s.writer.Update(doc.ID(), doc)
}

// Search returns the ids of the best matching messages in which viewerID
// is a participant, most relevant first.
func (s *SearchIndex) Search(ctx context.Context, viewerID, terms string, limit int) ([]uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer reader.Close()

	participant := bluge.NewBooleanQuery()
	participant.AddShould(bluge.NewTermQuery(viewerID).SetField("sender"))
	participant.AddShould(bluge.NewTermQuery(viewerID).SetField("receiver"))
	participant.SetMinShould(1)

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("body")).
		AddMust(participant)

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var ids []uint64
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, err := strconv.ParseUint(string(value), 10, 64); err == nil {
					ids = append(ids, id)
				} else {
					s.log.Warn("non-numeric document id in index", "id", string(value))
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
