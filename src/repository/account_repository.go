package repository

import (
	"context"
	"encoding/json"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderrouter/src/database"
	"orderrouter/src/model"
)

// AccountScope narrows an operation to one user's accounts. The zero value
// spans every stored account.
type AccountScope struct {
	UserID *uint
}

// AccountRepository is the account registry: it resolves stored brokerage
// accounts into connection snapshots. Records are re-read on every call so
// out-of-band token refreshes are always picked up.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new repository instance using the main database.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *AccountRepository) WithDB(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// dhanCreds is the subset of the credential blob this service reads. The
// credential store writes more fields (api key, consent data); those stay
// opaque here.
type dhanCreds struct {
	AccessToken string `json:"access_token"`
}

// ListConnections enumerates the stored brokerage accounts for the scope.
// Individually unreadable records are logged and skipped so one bad record
// cannot fail a whole batch. Token-less accounts are returned; callers skip
// them on reads and report them on writes.
func (r *AccountRepository) ListConnections(ctx context.Context, scope AccountScope) ([]model.AccountConnection, error) {
	var rows []model.Account
	q := r.db.WithContext(ctx).Where("broker = ?", model.BrokerDhan)
	if scope.UserID != nil {
		q = q.Where("user_id = ?", *scope.UserID)
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	conns := make([]model.AccountConnection, 0, len(rows))
	for _, row := range rows {
		conn, ok := resolveConnection(row)
		if !ok {
			continue
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func resolveConnection(row model.Account) (model.AccountConnection, bool) {
	accountID := strings.TrimSpace(row.AccountID)
	if accountID == "" {
		logger.WithField("record_id", row.ID).
			Warn("Skipping account record without an account id")
		return model.AccountConnection{}, false
	}

	token := ""
	if strings.TrimSpace(row.Creds) != "" {
		var creds dhanCreds
		if err := json.Unmarshal([]byte(row.Creds), &creds); err != nil {
			logger.WithFields(map[string]interface{}{
				"record_id":  row.ID,
				"account_id": accountID,
			}).WithError(err).Warn("Skipping account record with unreadable credentials")
			return model.AccountConnection{}, false
		}
		token = strings.TrimSpace(creds.AccessToken)
	}

	name := strings.TrimSpace(row.DisplayName)
	if name == "" {
		name = accountID
	}

	return model.AccountConnection{
		AccountID:       accountID,
		DisplayName:     name,
		SessionToken:    token,
		CapitalBaseline: row.Capital,
	}, true
}
