// Package mongorepository keeps analysis documents and user snapshots in
// MongoDB, one document per key.
package mongorepository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"tradeanalytics/internal/config"
	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

const (
	AnalysisCollection = "analysis_documents"
	SnapshotCollection = "user_analysis_records"

	defaultTopRiskLimit = 10
	maxTopRiskLimit     = 500
)

// Connect dials MongoDB with the decimal aware registry and pings the primary.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*mongo.Client, func(), error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI).SetRegistry(NewRegistry()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}
	if logger != nil {
		logger.Info("mongodb connected", zap.String("database", cfg.Database))
	}
	cleanup := func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dcancel()
		if err := client.Disconnect(dctx); err != nil && logger != nil {
			logger.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

type Store struct {
	analysis  *mongo.Collection
	snapshots *mongo.Collection
}

var _ repository.AnalysisStore = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{
		analysis:  db.Collection(AnalysisCollection),
		snapshots: db.Collection(SnapshotCollection),
	}
}

// EnsureIndexes creates the unique keys the upserts rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.analysis.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "scope", Value: 1}, {Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_scope_owner"),
		},
	}); err != nil {
		return fmt.Errorf("analysis indexes: %w", err)
	}
	if _, err := s.snapshots.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "superadmin_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_superadmin_user"),
		},
		{
			Keys:    bson.D{{Key: "risk_score_user", Value: -1}, {Key: "generated_at", Value: -1}},
			Options: options.Index().SetName("idx_risk_score"),
		},
	}); err != nil {
		return fmt.Errorf("snapshot indexes: %w", err)
	}
	return nil
}

func keyFilter(key models.AnalysisKey) bson.D {
	return bson.D{{Key: "scope", Value: key.Scope}, {Key: "owner_id", Value: key.OwnerID}}
}

func (s *Store) UpsertAnalysisDocument(ctx context.Context, doc *models.AnalysisDocument) error {
	if s == nil || doc == nil {
		return nil
	}
	doc.Scope = strings.TrimSpace(doc.Scope)
	doc.OwnerID = strings.TrimSpace(doc.OwnerID)
	if doc.Scope == "" || doc.OwnerID == "" {
		return nil
	}
	row := toAnalysisRow(doc, time.Now().UTC())
	_, err := s.analysis.ReplaceOne(ctx, keyFilter(doc.Key()), row, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetAnalysisDocument(ctx context.Context, key models.AnalysisKey) (*models.AnalysisDocument, error) {
	if s == nil {
		return nil, nil
	}
	var row analysisRow
	err := s.analysis.FindOne(ctx, keyFilter(key)).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (s *Store) GetAnchor(ctx context.Context, key models.AnalysisKey) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	var row struct {
		StartDateAnchor *time.Time `bson:"start_date_anchor"`
	}
	opts := options.FindOne().SetProjection(bson.D{{Key: "start_date_anchor", Value: 1}})
	err := s.analysis.FindOne(ctx, keyFilter(key), opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.StartDateAnchor, nil
}

func (s *Store) SetAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) error {
	if s == nil {
		return nil
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "start_date_anchor", Value: anchor.UTC()},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	_, err := s.analysis.UpdateOne(ctx, keyFilter(key), update, options.Update().SetUpsert(true))
	return err
}

func (s *Store) UpdateAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) (bool, error) {
	if s == nil {
		return false, nil
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "start_date_anchor", Value: anchor.UTC()},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	res, err := s.analysis.UpdateOne(ctx, keyFilter(key), update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) UpsertUserSnapshot(ctx context.Context, rec *models.UserAnalysisRecord) error {
	if s == nil || rec == nil {
		return nil
	}
	rec.SuperadminID = strings.TrimSpace(rec.SuperadminID)
	rec.UserID = strings.TrimSpace(rec.UserID)
	if rec.SuperadminID == "" || rec.UserID == "" {
		return nil
	}
	filter := bson.D{{Key: "superadmin_id", Value: rec.SuperadminID}, {Key: "user_id", Value: rec.UserID}}
	_, err := s.snapshots.ReplaceOne(ctx, filter, toSnapshotRow(rec, time.Now().UTC()), options.Replace().SetUpsert(true))
	return err
}

func (s *Store) ListTopRiskUsers(ctx context.Context, params repository.TopRiskUsersParams) ([]models.UserAnalysisRecord, error) {
	if s == nil {
		return nil, nil
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultTopRiskLimit
	}
	if limit > maxTopRiskLimit {
		limit = maxTopRiskLimit
	}
	opts := options.Find().SetSort(topRiskSort()).SetLimit(int64(limit))
	cur, err := s.snapshots.Find(ctx, topRiskFilter(params), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []snapshotRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]models.UserAnalysisRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func topRiskFilter(params repository.TopRiskUsersParams) bson.D {
	filter := bson.D{}
	if params.SuperadminID != nil && strings.TrimSpace(*params.SuperadminID) != "" {
		filter = append(filter, bson.E{Key: "superadmin_id", Value: strings.TrimSpace(*params.SuperadminID)})
	}
	if params.From != nil || params.To != nil {
		rng := bson.D{}
		if params.From != nil {
			rng = append(rng, bson.E{Key: "$gte", Value: params.From.UTC()})
		}
		if params.To != nil {
			rng = append(rng, bson.E{Key: "$lt", Value: params.To.UTC()})
		}
		filter = append(filter, bson.E{Key: "generated_at", Value: rng})
	}
	if params.MinScore > 0 {
		filter = append(filter, bson.E{Key: "risk_score_user", Value: bson.D{{Key: "$gte", Value: params.MinScore}}})
	}
	return filter
}

func topRiskSort() bson.D {
	return bson.D{
		{Key: "risk_score_user", Value: -1},
		{Key: "total_volume", Value: -1},
		{Key: "win_percent", Value: -1},
		{Key: "generated_at", Value: -1},
	}
}
