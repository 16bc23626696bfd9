package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// subscriptionsCollection はサブスクリプションのコレクション名。
	subscriptionsCollection = "subscriptions"
	// pushSubscriptionsCollection はプッシュ購読のコレクション名。
	pushSubscriptionsCollection = "push_subscriptions"
)

var _ Store = (*MongoStore)(nil)

// MongoStore はMongoDBをバックエンドとする Store の実装。
type MongoStore struct {
	// client はMongoDBクライアント。
	client *mongo.Client
	// subscriptions はサブスクリプションのコレクション。
	subscriptions *mongo.Collection
	// pushRegistrations はプッシュ購読のコレクション。
	pushRegistrations *mongo.Collection
	// now は現在時刻を返す。
	now func() time.Time
}

// subscriptionDocument は subscriptions コレクションのドキュメント。
type subscriptionDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Cost           float64            `bson:"cost"`
	DueDate        string             `bson:"dueDate,omitempty"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
	LastNotifiedOn string             `bson:"lastNotifiedOn,omitempty"`
}

// pushKeysDocument はブラウザが返す keys オブジェクト。
type pushKeysDocument struct {
	P256dh string `bson:"p256dh"`
	Auth   string `bson:"auth"`
}

// pushRegistrationDocument は push_subscriptions コレクションのドキュメント。
type pushRegistrationDocument struct {
	Endpoint       string           `bson:"endpoint"`
	Keys           pushKeysDocument `bson:"keys"`
	ExpirationTime *int64           `bson:"expirationTime,omitempty"`
	CreatedAt      time.Time        `bson:"createdAt"`
	UpdatedAt      time.Time        `bson:"updatedAt"`
}

// endpointGroup は同じエンドポイントを持つ購読ドキュメントの_idを新しい順に並べたもの。
type endpointGroup struct {
	Endpoint string `bson:"_id"`
	IDs      []any  `bson:"ids"`
}

// OpenMongo はMongoDBに接続し、エンドポイントの一意インデックスを作成する。
// 一意制約のない頃に重複して保存された購読は、最新の1件を残して削除してから作成する。
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDB接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDBへの疎通確認に失敗: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:            client,
		subscriptions:     db.Collection(subscriptionsCollection),
		pushRegistrations: db.Collection(pushSubscriptionsCollection),
		now:               time.Now,
	}

	if err := s.removeDuplicateEndpoints(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if _, err := s.pushRegistrations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "endpoint", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("エンドポイントのインデックス作成に失敗: %w", err)
	}
	return s, nil
}

// removeDuplicateEndpoints は同じエンドポイントの購読を最新の1件だけ残して削除する。
func (s *MongoStore) removeDuplicateEndpoints(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$endpoint"},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
	}
	cur, err := s.pushRegistrations.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("重複したプッシュ購読の検索に失敗: %w", err)
	}
	var groups []endpointGroup
	if err := cur.All(ctx, &groups); err != nil {
		return fmt.Errorf("重複したプッシュ購読のデコードに失敗: %w", err)
	}

	stale := staleDuplicates(groups)
	if len(stale) == 0 {
		return nil
	}
	res, err := s.pushRegistrations.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: stale}}}})
	if err != nil {
		return fmt.Errorf("重複したプッシュ購読の削除に失敗: %w", err)
	}
	log.Printf("[Store] 重複したプッシュ購読を削除しました: %d件", res.DeletedCount)
	return nil
}

// staleDuplicates は各エンドポイントの先頭(最新)を除いた_idを返す。
func staleDuplicates(groups []endpointGroup) []any {
	var stale []any
	for _, g := range groups {
		if len(g.IDs) > 1 {
			stale = append(stale, g.IDs[1:]...)
		}
	}
	return stale
}

// Close はMongoDBから切断する。
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ListSubscriptions は支払日の昇順で全件を返す。支払日未設定は末尾に並べる。
func (s *MongoStore) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "dueDate", Value: 1},
		{Key: "createdAt", Value: 1},
	})
	cur, err := s.subscriptions.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗: %w", err)
	}

	var docs []subscriptionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧のデコードに失敗: %w", err)
	}

	subs := make([]Subscription, 0, len(docs))
	for _, doc := range docs {
		sub, err := doc.toSubscription()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	// MongoDBの昇順ではnull/欠損が先頭に来るため末尾へ移す
	slices.SortStableFunc(subs, func(a, b Subscription) int {
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return 1
		case a.DueDate != nil && b.DueDate == nil:
			return -1
		default:
			return 0
		}
	})
	return subs, nil
}

// GetSubscription はIDで1件を返す。IDがObjectIDとして解釈できない場合も ErrNotFound。
func (s *MongoStore) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}

	var doc subscriptionDocument
	err = s.subscriptions.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Subscription{}, fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプションの取得に失敗: %w", err)
	}
	return doc.toSubscription()
}

// CreateSubscription は作成日時を記録して保存する。
func (s *MongoStore) CreateSubscription(ctx context.Context, in NewSubscription) (Subscription, error) {
	status := in.Status
	if status == "" {
		status = StatusDue
	}
	now := s.now().UTC().Truncate(time.Millisecond)

	doc := subscriptionDocument{
		ID:        primitive.NewObjectID(),
		Name:      in.Name,
		Cost:      in.Cost,
		DueDate:   formatOptionalDate(in.DueDate),
		Status:    string(status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.subscriptions.InsertOne(ctx, doc); err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプションの作成に失敗: %w", err)
	}
	return doc.toSubscription()
}

// UpdateSubscription は指定フィールドを $set でマージして更新後の値を返す。
func (s *MongoStore) UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (Subscription, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}

	set := bson.D{{Key: "updatedAt", Value: s.now().UTC().Truncate(time.Millisecond)}}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *patch.Name})
	}
	if patch.Cost != nil {
		set = append(set, bson.E{Key: "cost", Value: *patch.Cost})
	}
	if patch.DueDate != nil {
		set = append(set, bson.E{Key: "dueDate", Value: patch.DueDate.String()})
	}
	if patch.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*patch.Status)})
	}
	update := bson.D{{Key: "$set", Value: set}}
	if patch.resetsNotification() {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "lastNotifiedOn", Value: ""}}})
	}

	result, err := s.subscriptions.UpdateByID(ctx, oid, update)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプションの更新に失敗: %w", err)
	}
	if result.MatchedCount == 0 {
		return Subscription{}, fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	return s.GetSubscription(ctx, id)
}

// DeleteSubscription はIDで1件を削除する。
func (s *MongoStore) DeleteSubscription(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	result, err := s.subscriptions.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("サブスクリプションの削除に失敗: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkNotified は期限通知を送った日を記録する。
func (s *MongoStore) MarkNotified(ctx context.Context, id string, on Date) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	result, err := s.subscriptions.UpdateByID(ctx, oid, bson.D{
		{Key: "$set", Value: bson.D{{Key: "lastNotifiedOn", Value: on.String()}}},
	})
	if err != nil {
		return fmt.Errorf("通知日の記録に失敗: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPushRegistrations は全件を返す。
func (s *MongoStore) ListPushRegistrations(ctx context.Context) ([]PushRegistration, error) {
	cur, err := s.pushRegistrations.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("プッシュ購読一覧の取得に失敗: %w", err)
	}

	var docs []pushRegistrationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("プッシュ購読一覧のデコードに失敗: %w", err)
	}

	regs := make([]PushRegistration, 0, len(docs))
	for _, doc := range docs {
		regs = append(regs, PushRegistration{
			Endpoint:       doc.Endpoint,
			P256dh:         doc.Keys.P256dh,
			Auth:           doc.Keys.Auth,
			ExpirationTime: doc.ExpirationTime,
			CreatedAt:      doc.CreatedAt,
			UpdatedAt:      doc.UpdatedAt,
		})
	}
	return regs, nil
}

// UpsertPushRegistration はエンドポイントをキーに登録または鍵を上書きする。
func (s *MongoStore) UpsertPushRegistration(ctx context.Context, reg PushRegistration) error {
	now := s.now().UTC().Truncate(time.Millisecond)
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "keys", Value: pushKeysDocument{P256dh: reg.P256dh, Auth: reg.Auth}},
			{Key: "expirationTime", Value: reg.ExpirationTime},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: now}}},
	}
	_, err := s.pushRegistrations.UpdateOne(ctx,
		bson.D{{Key: "endpoint", Value: reg.Endpoint}},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("プッシュ購読の登録に失敗: %w", err)
	}
	return nil
}

// DeletePushRegistration はエンドポイントで削除する。
func (s *MongoStore) DeletePushRegistration(ctx context.Context, endpoint string) error {
	result, err := s.pushRegistrations.DeleteMany(ctx, bson.D{{Key: "endpoint", Value: endpoint}})
	if err != nil {
		return fmt.Errorf("プッシュ購読の削除に失敗: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("プッシュ購読 %s: %w", endpoint, ErrNotFound)
	}
	return nil
}

// toSubscription はドキュメントをドメインの値に変換する。
// status を持たない古いドキュメントは Due として扱う。
func (d subscriptionDocument) toSubscription() (Subscription, error) {
	dueDate, err := parseOptionalDate(d.DueDate)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプション %s の支払日が不正です: %w", d.ID.Hex(), err)
	}
	lastNotified, err := parseOptionalDate(d.LastNotifiedOn)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプション %s の通知日が不正です: %w", d.ID.Hex(), err)
	}
	status := Status(d.Status)
	if status == "" {
		status = StatusDue
	}
	return Subscription{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Cost:           d.Cost,
		DueDate:        dueDate,
		Status:         status,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		LastNotifiedOn: lastNotified,
	}, nil
}
