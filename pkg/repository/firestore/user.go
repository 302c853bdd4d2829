package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userRepository struct {
	f *Firestore
}

// emailClaim reserves an email address for one user
type emailClaim struct {
	UserID types.UserID
}

func (r *userRepository) users() *firestore.CollectionRef {
	return r.f.collection(collUsers)
}

func (r *userRepository) emails() *firestore.CollectionRef {
	return r.f.collection(collUserEmails)
}

func (r *userRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	created := *u
	if created.ID == "" {
		created.ID = types.NewUserID()
	}
	if err := model.PrepareUser(&created, r.f.now()); err != nil {
		return nil, goerr.Wrap(err, "failed to prepare user")
	}

	userRef := r.users().Doc(created.ID.String())
	emailRef := r.emails().Doc(created.Email)

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(emailRef); err == nil {
			return goerr.Wrap(interfaces.ErrEmailTaken, "email already registered", goerr.V(model.EmailKey, created.Email))
		} else if status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to check email claim")
		}

		if err := tx.Create(emailRef, emailClaim{UserID: created.ID}); err != nil {
			return goerr.Wrap(err, "failed to claim email")
		}
		return tx.Create(userRef, &created)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	snap, err := r.users().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	var u model.User
	if err := snap.DataTo(&u); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("id", id))
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found")
	}

	snap, err := r.emails().Doc(email).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V(model.EmailKey, email))
		}
		return nil, goerr.Wrap(err, "failed to get email claim", goerr.V(model.EmailKey, email))
	}

	var claim emailClaim
	if err := snap.DataTo(&claim); err != nil {
		return nil, goerr.Wrap(err, "failed to decode email claim", goerr.V(model.EmailKey, email))
	}
	return r.Get(ctx, claim.UserID)
}

func (r *userRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, model.Pagination, error) {
	q := r.users().Query
	if filter.Role != "" {
		q = q.Where("Role", "==", string(filter.Role))
	}
	if filter.IsActive != nil {
		q = q.Where("IsActive", "==", *filter.IsActive)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var users []*model.User
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, model.Pagination{}, goerr.Wrap(err, "failed to iterate users")
		}

		var u model.User
		if err := snap.DataTo(&u); err != nil {
			return nil, model.Pagination{}, goerr.Wrap(err, "failed to decode user", goerr.V("doc_id", snap.Ref.ID))
		}
		if filter.Match(&u) {
			users = append(users, &u)
		}
	}

	model.SortUsers(users, filter.Page.SortBy, filter.Page.SortDesc)
	page, p := model.Paginate(users, filter.Page)
	return page, p, nil
}

func (r *userRepository) Update(ctx context.Context, id types.UserID, mutate func(u *model.User) error) (*model.User, error) {
	userRef := r.users().Doc(id.String())

	var updated model.User
	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get user")
		}
		var existing model.User
		if err := snap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to decode user")
		}

		// the transaction may be retried, so mutate starts from the
		// snapshot every time
		updated = existing
		if err := mutate(&updated); err != nil {
			return goerr.Wrap(err, "user update aborted")
		}
		updated.ID = id
		updated.CreatedAt = existing.CreatedAt
		if err := model.PrepareUser(&updated, r.f.now()); err != nil {
			return goerr.Wrap(err, "failed to prepare user")
		}

		if existing.Email != updated.Email {
			newEmailRef := r.emails().Doc(updated.Email)
			if _, err := tx.Get(newEmailRef); err == nil {
				return goerr.Wrap(interfaces.ErrEmailTaken, "email already registered", goerr.V(model.EmailKey, updated.Email))
			} else if status.Code(err) != codes.NotFound {
				return goerr.Wrap(err, "failed to check email claim")
			}
			if err := tx.Delete(r.emails().Doc(existing.Email)); err != nil {
				return goerr.Wrap(err, "failed to release old email")
			}
			if err := tx.Create(newEmailRef, emailClaim{UserID: id}); err != nil {
				return goerr.Wrap(err, "failed to claim email")
			}
		}
		return tx.Set(userRef, &updated)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update user", goerr.V("id", id))
	}

	return &updated, nil
}

func (r *userRepository) Delete(ctx context.Context, id types.UserID) error {
	userRef := r.users().Doc(id.String())

	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get user", goerr.V("id", id))
		}
		var existing model.User
		if err := snap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to decode user", goerr.V("id", id))
		}

		if err := tx.Delete(r.emails().Doc(existing.Email)); err != nil {
			return goerr.Wrap(err, "failed to release email", goerr.V("id", id))
		}
		return tx.Delete(userRef)
	})
}
