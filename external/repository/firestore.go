package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/foxseedlab/chumon/internal/repository"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	countersCollection      = "counters"
	conversationCounterDoc  = "conversations"
)

// FirestoreRepository stores conversations as documents keyed by their
// numeric id, with messages in a subcollection keyed by position.
type FirestoreRepository struct {
	client *firestore.Client
}

func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

type conversationDoc struct {
	Name       string     `firestore:"name"`
	CreatedAt  time.Time  `firestore:"created_at"`
	ArchivedAt *time.Time `firestore:"archived_at"`
}

type messageDoc struct {
	Position  int       `firestore:"position"`
	Sender    string    `firestore:"sender"`
	Text      string    `firestore:"text"`
	Icon      string    `firestore:"icon"`
	CreatedAt time.Time `firestore:"created_at"`
}

type counterDoc struct {
	Next int64 `firestore:"next"`
}

func (r *FirestoreRepository) conversationDoc(id int64) *firestore.DocumentRef {
	return r.client.Collection(conversationsCollection).Doc(strconv.FormatInt(id, 10))
}

func (r *FirestoreRepository) messagesCol(conversationID int64) *firestore.CollectionRef {
	return r.conversationDoc(conversationID).Collection(messagesCollection)
}

// CreateConversation allocates the next id from a counter document inside a
// transaction so ids stay sequential like a database sequence.
func (r *FirestoreRepository) CreateConversation(ctx context.Context, input repository.CreateConversationInput) (*repository.ConversationRecord, error) {
	counterRef := r.client.Collection(countersCollection).Doc(conversationCounterDoc)
	var id int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var counter counterDoc
		snap, err := tx.Get(counterRef)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&counter); err != nil {
				return fmt.Errorf("decode counter: %w", err)
			}
		}
		id = counter.Next + 1
		if err := tx.Set(counterRef, counterDoc{Next: id}); err != nil {
			return err
		}
		return tx.Create(r.conversationDoc(id), conversationDoc{
			Name:      input.Name,
			CreatedAt: input.CreatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("firestore CreateConversation: %w", err)
	}
	return &repository.ConversationRecord{ID: id, Name: input.Name, CreatedAt: input.CreatedAt}, nil
}

func (r *FirestoreRepository) RenameConversation(ctx context.Context, input repository.RenameConversationInput) error {
	_, err := r.conversationDoc(input.ConversationID).Update(ctx, []firestore.Update{
		{Path: "name", Value: input.Name},
	})
	return notFoundOr(err, "firestore RenameConversation")
}

func (r *FirestoreRepository) ArchiveConversation(ctx context.Context, input repository.ArchiveConversationInput) error {
	_, err := r.conversationDoc(input.ConversationID).Update(ctx, []firestore.Update{
		{Path: "archived_at", Value: input.ArchivedAt},
	})
	return notFoundOr(err, "firestore ArchiveConversation")
}

func (r *FirestoreRepository) GetConversation(ctx context.Context, id int64) (*repository.ConversationRecord, error) {
	snap, err := r.conversationDoc(id).Get(ctx)
	if err != nil {
		return nil, notFoundOr(err, "firestore GetConversation")
	}
	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetConversation decode: %w", err)
	}
	return &repository.ConversationRecord{
		ID:         id,
		Name:       doc.Name,
		CreatedAt:  doc.CreatedAt,
		ArchivedAt: doc.ArchivedAt,
	}, nil
}

func (r *FirestoreRepository) AppendMessage(ctx context.Context, input repository.AppendMessageInput) error {
	doc := messageDoc{
		Position:  input.Position,
		Sender:    input.Sender,
		Text:      input.Text,
		Icon:      input.Icon,
		CreatedAt: input.CreatedAt,
	}
	if _, err := r.messagesCol(input.ConversationID).Doc(fmt.Sprintf("%06d", input.Position)).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) ListMessages(ctx context.Context, conversationID int64) ([]repository.MessageRecord, error) {
	iter := r.messagesCol(conversationID).OrderBy("position", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []repository.MessageRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, repository.MessageRecord{
			ConversationID: conversationID,
			Position:       doc.Position,
			Sender:         doc.Sender,
			Text:           doc.Text,
			Icon:           doc.Icon,
			CreatedAt:      doc.CreatedAt,
		})
	}
	return out, nil
}

func notFoundOr(err error, op string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
