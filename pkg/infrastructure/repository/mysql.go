package repository

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"canteen/pkg/domain/model"
)

type MySQLReceiptRepository struct {
	db *sqlx.DB
}

func NewMySQLReceiptRepository(db *sqlx.DB) *MySQLReceiptRepository {
	return &MySQLReceiptRepository{db: db}
}

const errDuplicateEntry = 1062

const insertReceipt = `
INSERT INTO receipts (order_number, order_date, total, transaction_id, comment)
VALUES (:order_number, :order_date, :total, :transaction_id, :comment)`

func (r *MySQLReceiptRepository) Store(receipt *model.Receipt) error {
	if _, err := r.db.NamedExec(insertReceipt, receipt); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			return errors.Wrapf(model.ErrDuplicateOrder, "store receipt %s", receipt.OrderNumber)
		}
		return errors.Wrapf(err, "store receipt %s", receipt.OrderNumber)
	}
	return nil
}

// MaxOrderNumber returns the highest numeric order number stored, or 0.
func (r *MySQLReceiptRepository) MaxOrderNumber() (int64, error) {
	var highest int64
	err := r.db.Get(&highest, `SELECT COALESCE(MAX(CAST(order_number AS UNSIGNED)), 0) FROM receipts`)
	if err != nil {
		return 0, errors.Wrap(err, "max order number")
	}
	return highest, nil
}

func (r *MySQLReceiptRepository) Find(orderNumber string) (*model.Receipt, error) {
	var receipt model.Receipt
	err := r.db.Get(&receipt, `
SELECT order_number, order_date, total, transaction_id, comment
FROM receipts WHERE order_number = ?`, orderNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrReceiptNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find receipt %s", orderNumber)
	}
	return &receipt, nil
}

func (r *MySQLReceiptRepository) List() ([]model.Receipt, error) {
	var receipts []model.Receipt
	err := r.db.Select(&receipts, `
SELECT order_number, order_date, total, transaction_id, comment
FROM receipts ORDER BY order_date ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list receipts")
	}
	return receipts, nil
}
