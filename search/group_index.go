package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"

	"halo-chat/domain"
)

//go:generate mockgen -source=group_index.go -destination=../mocks/group_index_mock.go -package=mocks

// IGroupIndex is the discovery surface for public groups. Private groups
// never enter the index, they stay reachable through invite codes only.
type IGroupIndex interface {
	Index(group domain.Group) error
	Remove(groupID string) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type GroupIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewGroupIndex(writer *bluge.Writer, log *slog.Logger) IGroupIndex {
	return &GroupIndex{writer: writer, log: log}
}

func (i *GroupIndex) Index(group domain.Group) error {
	if group.Type != domain.GroupPublic {
		return nil
	}

	doc := bluge.NewDocument(group.ID).
		AddField(bluge.NewTextField("name", group.Name)).
		AddField(bluge.NewTextField("slug", group.Slug)).
		AddField(bluge.NewTextField("description", group.Description))

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to index group %s: %w", group.ID, err)
	}
	i.log.Debug("group indexed", "group_id", group.ID, "slug", group.Slug)
	return nil
}

func (i *GroupIndex) Remove(groupID string) error {
	doc := bluge.NewDocument(groupID)
	if err := i.writer.Delete(doc.ID()); err != nil {
		return fmt.Errorf("failed to remove group %s from index: %w", groupID, err)
	}
	return nil
}

// Search returns the ids of public groups matching query across name,
// slug and description, best matches first.
func (i *GroupIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(query).SetField("name")).
		AddShould(bluge.NewMatchQuery(query).SetField("slug")).
		AddShould(bluge.NewMatchQuery(query).SetField("description"))

	it, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var ids []string
	for {
		match, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate search results: %w", err)
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read search result: %w", err)
		}
	}
	return ids, nil
}
