package weaviate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"nuvaru/src/core/rag"
)

const classPrefix = "KnowledgeBase_"

// Store implements rag.VectorStore on a Weaviate instance, one class per
// knowledge base.
type Store struct {
	client *weaviate.Client
	node   *snowflake.Node
}

func NewStore(client *weaviate.Client, node *snowflake.Node) *Store {
	return &Store{client: client, node: node}
}

// ClassName maps a knowledge base id to a Weaviate class. Weaviate class
// names must be alphanumeric and start with an uppercase letter, so the id is
// stripped of everything else.
func ClassName(knowledgeBaseID string) string {
	var sb strings.Builder
	sb.WriteString(classPrefix)
	for _, r := range knowledgeBaseID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (s *Store) classExists(ctx context.Context, className string) (bool, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to get schema: %v", rag.ErrStoreUnavailable, err)
	}
	for _, class := range schema.Classes {
		if class.Class == className {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) EnsureCollection(ctx context.Context, knowledgeBaseID string) error {
	className := ClassName(knowledgeBaseID)
	exists, err := s.classExists(ctx, className)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	textType := []string{"text"}
	intType := []string{"int"}
	class := &models.Class{
		Class:      className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "chunkId", DataType: textType},
			{Name: "content", DataType: textType},
			{Name: "ownerId", DataType: textType},
			{Name: "documentId", DataType: textType},
			{Name: "filename", DataType: textType},
			{Name: "chunkIndex", DataType: intType},
			{Name: "charStart", DataType: intType},
			{Name: "charEnd", DataType: intType},
			{Name: "seq", DataType: intType},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %v", className, err)
	}
	return nil
}

// Upsert writes chunks with deterministic object ids derived from the chunk
// id, so re-ingesting a document replaces its objects instead of duplicating
// them.
func (s *Store) Upsert(ctx context.Context, knowledgeBaseID string, entries []rag.ChunkEntry) error {
	if len(entries) == 0 {
		return nil
	}
	className := ClassName(knowledgeBaseID)

	objs := make([]*models.Object, len(entries))
	for i, e := range entries {
		objs[i] = &models.Object{
			Class:  className,
			ID:     objectID(e.ChunkID),
			Vector: e.Vector,
			Properties: map[string]interface{}{
				"chunkId":    e.ChunkID,
				"content":    e.Text,
				"ownerId":    e.Metadata.OwnerID,
				"documentId": e.Metadata.DocumentID,
				"filename":   e.Metadata.Filename,
				"chunkIndex": e.Metadata.ChunkIndex,
				"charStart":  e.Metadata.CharStart,
				"charEnd":    e.Metadata.CharEnd,
				"seq":        s.node.Generate().Int64(),
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch upsert vectors: %v", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert rejected object: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func objectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// Query runs nearVector search and re-sorts locally so ordering is stable:
// score descending, then insertion sequence ascending.
func (s *Store) Query(ctx context.Context, knowledgeBaseID string, vector []float32, topK int, filter rag.QueryFilter) ([]rag.Match, error) {
	className := ClassName(knowledgeBaseID)
	exists, err := s.classExists(ctx, className)
	if err != nil {
		return nil, err
	}
	if !exists || topK <= 0 {
		return nil, nil
	}

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "content"},
		{Name: "ownerId"},
		{Name: "documentId"},
		{Name: "filename"},
		{Name: "chunkIndex"},
		{Name: "charStart"},
		{Name: "charEnd"},
		{Name: "seq"},
		{Name: "_additional { id certainty }"},
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	query := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK)

	if where := buildWhere(filter); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", rag.ErrStoreUnavailable, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: query failed: %s", rag.ErrStoreUnavailable, result.Errors[0].Message)
	}

	type seqMatch struct {
		match rag.Match
		seq   int64
	}
	var matches []seqMatch

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, ok := data[className].([]interface{})
	if !ok {
		return nil, nil
	}
	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		additional, _ := objMap["_additional"].(map[string]interface{})
		certainty, _ := additional["certainty"].(float64)

		matches = append(matches, seqMatch{
			match: rag.Match{
				ChunkID: asString(objMap["chunkId"]),
				Text:    asString(objMap["content"]),
				// certainty is (1+cosine)/2
				Score: certainty*2 - 1,
				Metadata: rag.ChunkMetadata{
					OwnerID:         asString(objMap["ownerId"]),
					KnowledgeBaseID: knowledgeBaseID,
					DocumentID:      asString(objMap["documentId"]),
					Filename:        asString(objMap["filename"]),
					ChunkIndex:      asInt(objMap["chunkIndex"]),
					CharStart:       asInt(objMap["charStart"]),
					CharEnd:         asInt(objMap["charEnd"]),
				},
			},
			seq: int64(asInt(objMap["seq"])),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].match.Score != matches[j].match.Score {
			return matches[i].match.Score > matches[j].match.Score
		}
		return matches[i].seq < matches[j].seq
	})

	out := make([]rag.Match, len(matches))
	for i, m := range matches {
		out[i] = m.match
	}
	return out, nil
}

func buildWhere(filter rag.QueryFilter) *filters.WhereBuilder {
	var clauses []*filters.WhereBuilder
	if filter.OwnerID != "" {
		clauses = append(clauses, filters.Where().
			WithPath([]string{"ownerId"}).
			WithOperator(filters.Equal).
			WithValueText(filter.OwnerID))
	}
	if filter.DocumentID != "" {
		clauses = append(clauses, filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueText(filter.DocumentID))
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(clauses)
	}
}

// DeleteDocument batch-deletes every object whose documentId matches, in one
// server-side operation.
func (s *Store) DeleteDocument(ctx context.Context, knowledgeBaseID, documentID string) error {
	className := ClassName(knowledgeBaseID)
	exists, err := s.classExists(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueText(documentID)

	_, err = s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document vectors: %v", err)
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, knowledgeBaseID string) error {
	className := ClassName(knowledgeBaseID)
	exists, err := s.classExists(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %v", className, err)
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int {
	// GraphQL numbers arrive as float64.
	f, _ := v.(float64)
	return int(f)
}

var _ rag.VectorStore = (*Store)(nil)
