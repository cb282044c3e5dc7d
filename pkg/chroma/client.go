package chroma

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskflow-backend/pkg/config"
	"taskflow-backend/pkg/search"
)

const collectionName = "research_sources"

// maxDocumentLength keeps documents inside the embedding model's token limit.
const maxDocumentLength = 10000

// KnowledgeBase stores sources found by past research runs and serves them
// back as a search provider scoped to the owner.
type KnowledgeBase struct {
	client     chroma.Client
	collection chroma.Collection
	logger     *zap.Logger
}

func NewKnowledgeBase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*KnowledgeBase, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}
	if cfg.GeminiApiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for chroma embeddings")
	}

	// The embedding function reads its key from the environment
	if os.Getenv("GEMINI_API_KEY") == "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiApiKey)
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	switch {
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	case cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithTenant(cfg.ChromaTenant),
		)
	default:
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(ctx, collectionName,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	log := logger.Named("chroma")
	log.Info("initialized knowledge base", zap.String("collection", collectionName))

	return &KnowledgeBase{client: client, collection: collection, logger: log}, nil
}

func (k *KnowledgeBase) Name() string { return "chroma" }

// IndexSources upserts research sources for an owner. The document id is
// derived from owner and URL so re-indexing the same page overwrites it.
func (k *KnowledgeBase) IndexSources(ctx context.Context, ownerID, taskID string, sources []search.RawResult) error {
	if len(sources) == 0 {
		return nil
	}

	ids := make([]chroma.DocumentID, 0, len(sources))
	texts := make([]string, 0, len(sources))
	metadatas := make([]chroma.DocumentMetadata, 0, len(sources))
	for _, s := range sources {
		text := clip(s.Title+"\n\n"+s.Snippet, maxDocumentLength)
		metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
			"user_id": ownerID,
			"task_id": taskID,
			"url":     s.URL,
			"title":   s.Title,
		})
		if err != nil {
			return fmt.Errorf("failed to create metadata: %w", err)
		}
		ids = append(ids, chroma.DocumentID(documentID(ownerID, s.URL)))
		texts = append(texts, text)
		metadatas = append(metadatas, metadata)
	}

	if err := k.collection.Upsert(ctx,
		chroma.WithIDs(ids...),
		chroma.WithMetadatas(metadatas...),
		chroma.WithTexts(texts...),
	); err != nil {
		return fmt.Errorf("failed to upsert research sources: %w", err)
	}
	return nil
}

// Search queries the owner's indexed sources. Without an owner in ctx it
// returns nothing so one owner's knowledge never leaks to another.
func (k *KnowledgeBase) Search(ctx context.Context, query string, limit int) ([]search.RawResult, error) {
	ownerID, ok := search.OwnerFromContext(ctx)
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	results, err := k.collection.Query(ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(limit),
		chroma.WithWhereQuery(chroma.EqString("user_id", ownerID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return nil, nil
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}
	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()

	out := make([]search.RawResult, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		r := search.RawResult{ID: string(id)}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) && metaGroups[0][i] != nil {
			r.URL, _ = metaGroups[0][i].GetString("url")
			r.Title, _ = metaGroups[0][i].GetString("title")
		}
		if len(docGroups) > 0 && i < len(docGroups[0]) && docGroups[0][i] != nil {
			r.Snippet = snippetFromDocument(docGroups[0][i].ContentString())
		}
		if r.URL == "" {
			continue
		}
		out = append(out, r)
	}

	k.logger.Debug("knowledge search", zap.String("owner_id", ownerID), zap.Int("results", len(out)))
	return out, nil
}

func documentID(ownerID, url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(ownerID+"|"+url)).String()
}

// snippetFromDocument drops the title line written by IndexSources.
func snippetFromDocument(doc string) string {
	if _, rest, ok := strings.Cut(doc, "\n\n"); ok {
		return rest
	}
	return doc
}

// clip cuts s to at most n bytes without splitting a rune
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
