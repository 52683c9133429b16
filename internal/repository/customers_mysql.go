package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/younes-bami/hrcut-app/internal/model"
)

// mysqlErrDuplicateEntry is ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

type MySQLCustomersRepository struct {
	db *sqlx.DB
}

func NewMySQLCustomersRepository(db *sqlx.DB) *MySQLCustomersRepository {
	return &MySQLCustomersRepository{db: db}
}

var _ CustomersRepository = (*MySQLCustomersRepository)(nil)

// customerRow is the table shape: list fields are stored as JSON documents.
type customerRow struct {
	model.Customer
	ServicesJSON []byte `db:"services_interested_in"`
	BookingsJSON []byte `db:"booking_history"`
	ReviewsJSON  []byte `db:"reviews"`
	RatingsJSON  []byte `db:"ratings"`
}

func toRow(c *model.Customer) (customerRow, error) {
	row := customerRow{Customer: *c}
	var err error
	if row.ServicesJSON, err = marshalList(c.ServicesInterestedIn); err != nil {
		return row, err
	}
	if row.BookingsJSON, err = marshalList(c.BookingHistory); err != nil {
		return row, err
	}
	if row.ReviewsJSON, err = marshalList(c.Reviews); err != nil {
		return row, err
	}
	if row.RatingsJSON, err = json.Marshal(nonNil(c.Ratings)); err != nil {
		return row, err
	}
	return row, nil
}

func (row customerRow) customer() (*model.Customer, error) {
	c := row.Customer
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{row.ServicesJSON, &c.ServicesInterestedIn},
		{row.BookingsJSON, &c.BookingHistory},
		{row.ReviewsJSON, &c.Reviews},
		{row.RatingsJSON, &c.Ratings},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func marshalList(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

const customersDDL = `
CREATE TABLE IF NOT EXISTS customers (
    id                       VARCHAR(26)  NOT NULL PRIMARY KEY,
    auth_user_id             VARCHAR(128) NOT NULL DEFAULT '',
    username                 VARCHAR(64)  NOT NULL,
    password_hash            VARCHAR(255) NOT NULL DEFAULT '',
    first_name               VARCHAR(100) NOT NULL,
    last_name                VARCHAR(100) NOT NULL,
    email                    VARCHAR(255) NOT NULL,
    phone_number             VARCHAR(32)  NOT NULL,
    profile_picture          VARCHAR(512) NOT NULL DEFAULT '',
    bio                      TEXT         NOT NULL,
    location                 VARCHAR(200) NOT NULL DEFAULT '',
    preferred_hairdresser_id VARCHAR(128) NOT NULL DEFAULT '',
    services_interested_in   JSON         NOT NULL,
    booking_history          JSON         NOT NULL,
    reviews                  JSON         NOT NULL,
    ratings                  JSON         NOT NULL,
    is_verified              BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at               DATETIME(3)  NOT NULL,
    updated_at               DATETIME(3)  NOT NULL,
    UNIQUE KEY uniq_email (email),
    UNIQUE KEY uniq_username (username),
    KEY idx_phone (phone_number),
    KEY idx_auth_user (auth_user_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

func (r *MySQLCustomersRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, customersDDL)
	return err
}

func (r *MySQLCustomersRepository) Insert(ctx context.Context, c *model.Customer) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO customers
		    (id, auth_user_id, username, password_hash, first_name, last_name, email, phone_number,
		     profile_picture, bio, location, preferred_hairdresser_id,
		     services_interested_in, booking_history, reviews, ratings,
		     is_verified, created_at, updated_at)
		VALUES
		    (:id, :auth_user_id, :username, :password_hash, :first_name, :last_name, :email, :phone_number,
		     :profile_picture, :bio, :location, :preferred_hairdresser_id,
		     :services_interested_in, :booking_history, :reviews, :ratings,
		     :is_verified, :created_at, :updated_at)
	`
	_, err = r.db.NamedExecContext(ctx, q, row)
	return mapMySQLErr(err)
}

const selectCustomer = `
	SELECT id, auth_user_id, username, password_hash, first_name, last_name, email, phone_number,
	       profile_picture, bio, location, preferred_hairdresser_id,
	       services_interested_in, booking_history, reviews, ratings,
	       is_verified, created_at, updated_at
	  FROM customers
`

func (r *MySQLCustomersRepository) getBy(ctx context.Context, column, value string) (*model.Customer, error) {
	var row customerRow
	err := r.db.GetContext(ctx, &row, selectCustomer+" WHERE "+column+" = ? LIMIT 1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.customer()
}

func (r *MySQLCustomersRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	return r.getBy(ctx, "id", id)
}

func (r *MySQLCustomersRepository) GetByUsername(ctx context.Context, username string) (*model.Customer, error) {
	return r.getBy(ctx, "username", username)
}

func (r *MySQLCustomersRepository) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.getBy(ctx, "email", email)
}

func (r *MySQLCustomersRepository) GetByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return r.getBy(ctx, "phone_number", phone)
}

func (r *MySQLCustomersRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*model.Customer, error) {
	if authUserID == "" {
		return nil, ErrNotFound
	}
	return r.getBy(ctx, "auth_user_id", authUserID)
}

func (r *MySQLCustomersRepository) Update(ctx context.Context, c *model.Customer) error {
	const q = `
		UPDATE customers
		   SET username = ?, first_name = ?, last_name = ?, email = ?, phone_number = ?,
		       profile_picture = ?, bio = ?, location = ?, preferred_hairdresser_id = ?,
		       updated_at = ?
		 WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, q,
		c.Username, c.FirstName, c.LastName, c.Email, c.PhoneNumber,
		c.ProfilePicture, c.Bio, c.Location, c.PreferredHairdresserID,
		c.UpdatedAt.UTC().Truncate(time.Millisecond), c.ID,
	)
	if err != nil {
		return mapMySQLErr(err)
	}
	// MySQL reports 0 affected rows for a no-op update, so confirm existence.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func mapMySQLErr(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlErrDuplicateEntry {
		return err
	}
	switch {
	case strings.Contains(me.Message, "uniq_email"):
		return &DuplicateError{Field: "email"}
	case strings.Contains(me.Message, "uniq_username"):
		return &DuplicateError{Field: "username"}
	default:
		return &DuplicateError{Field: "id"}
	}
}
