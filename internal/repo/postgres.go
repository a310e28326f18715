package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/pricing"
)

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Postgres implements every repository on a pgx pool with hand written SQL.
type Postgres struct {
	DB DB
}

const productColumns = `id, code, name, company_name, description, price, category, image, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CompanyName, &p.Description, &p.Price, &p.Category, &p.Image, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, err
}

// ListProducts implements catalog.Repository.
func (r *Postgres) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct implements catalog.Repository.
func (r *Postgres) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetProductByCode implements catalog.Repository.
func (r *Postgres) GetProductByCode(ctx context.Context, code string) (catalog.Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE upper(code)=upper($1)`, code))
}

// InsertProduct implements catalog.Repository.
func (r *Postgres) InsertProduct(ctx context.Context, p catalog.Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, code, name, company_name, description, price, category, image, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Code, p.Name, p.CompanyName, p.Description, p.Price, p.Category, p.Image, p.Stock, p.CreatedAt, p.UpdatedAt)
	switch {
	case isUniqueViolation(err, "products_code_key"):
		return catalog.ErrDuplicateCode
	case isUniqueViolation(err, ""):
		return ErrConflict
	}
	return err
}

// UpdateProduct implements catalog.Repository.
func (r *Postgres) UpdateProduct(ctx context.Context, p catalog.Product) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE products SET code=$2, name=$3, company_name=$4, description=$5, price=$6,
			category=$7, image=$8, stock=$9, updated_at=$10
		WHERE id=$1`,
		p.ID, p.Code, p.Name, p.CompanyName, p.Description, p.Price, p.Category, p.Image, p.Stock, p.UpdatedAt)
	if isUniqueViolation(err, "products_code_key") {
		return catalog.ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// DeleteProduct implements catalog.Repository.
func (r *Postgres) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

const ruleColumns = `id, code, percentage, is_active, is_automatic, COALESCE(target_product_id,''), COALESCE(target_customer_id,''), description`

func scanRule(row pgx.Row) (pricing.DiscountRule, error) {
	var d pricing.DiscountRule
	err := row.Scan(&d.ID, &d.Code, &d.Percentage, &d.IsActive, &d.IsAutomatic, &d.TargetProductID, &d.TargetCustomerID, &d.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.DiscountRule{}, ErrRuleNotFound
	}
	return d, err
}

// ListRules implements discount.Repository.
func (r *Postgres) ListRules(ctx context.Context) ([]pricing.DiscountRule, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+ruleColumns+` FROM discount_rules ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pricing.DiscountRule
	for rows.Next() {
		d, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetRule implements discount.Repository.
func (r *Postgres) GetRule(ctx context.Context, id string) (pricing.DiscountRule, error) {
	return scanRule(r.DB.QueryRow(ctx, `SELECT `+ruleColumns+` FROM discount_rules WHERE id=$1`, id))
}

const insertRuleSQL = `
	INSERT INTO discount_rules (id, code, percentage, is_active, is_automatic, target_product_id, target_customer_id, description)
	VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8)`

func ruleArgs(d pricing.DiscountRule) []any {
	return []any{d.ID, d.Code, d.Percentage, d.IsActive, d.IsAutomatic, d.TargetProductID, d.TargetCustomerID, d.Description}
}

// InsertRule implements discount.Repository.
func (r *Postgres) InsertRule(ctx context.Context, d pricing.DiscountRule) error {
	_, err := r.DB.Exec(ctx, insertRuleSQL, ruleArgs(d)...)
	if isUniqueViolation(err, "") {
		return ErrConflict
	}
	return err
}

// UpdateRule implements discount.Repository.
func (r *Postgres) UpdateRule(ctx context.Context, d pricing.DiscountRule) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE discount_rules SET code=$2, percentage=$3, is_active=$4, is_automatic=$5,
			target_product_id=NULLIF($6,''), target_customer_id=NULLIF($7,''), description=$8
		WHERE id=$1`, ruleArgs(d)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule implements discount.Repository.
func (r *Postgres) DeleteRule(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM discount_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ReplaceProductRules implements discount.Repository in a single transaction.
func (r *Postgres) ReplaceProductRules(ctx context.Context, productID string, rule *pricing.DiscountRule) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, `DELETE FROM discount_rules WHERE target_product_id=$1`, productID); err != nil {
		return err
	}
	if rule != nil {
		if _, err := tx.Exec(ctx, insertRuleSQL, ruleArgs(*rule)...); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// DeleteRulesForProduct implements catalog.MarkdownCleaner.
func (r *Postgres) DeleteRulesForProduct(ctx context.Context, productID string) (int, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM discount_rules WHERE target_product_id=$1`, productID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const customerColumns = `id, name, email, phone, type, joined_at`

func scanCustomer(row pgx.Row) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Type, &c.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return customer.Customer{}, customer.ErrNotFound
	}
	return c, err
}

// ListCustomers implements customer.Repository.
func (r *Postgres) ListCustomers(ctx context.Context) ([]customer.Customer, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []customer.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCustomer implements customer.Repository.
func (r *Postgres) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	return scanCustomer(r.DB.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
}

// InsertCustomer implements customer.Repository.
func (r *Postgres) InsertCustomer(ctx context.Context, c customer.Customer) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO customers (id, name, email, phone, type, joined_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Name, c.Email, c.Phone, string(c.Type), c.JoinedAt)
	if isUniqueViolation(err, "") {
		return ErrConflict
	}
	return err
}

// UpdateCustomer implements customer.Repository.
func (r *Postgres) UpdateCustomer(ctx context.Context, c customer.Customer) error {
	tag, err := r.DB.Exec(ctx, `UPDATE customers SET name=$2, email=$3, phone=$4, type=$5 WHERE id=$1`,
		c.ID, c.Name, c.Email, c.Phone, string(c.Type))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// DeleteCustomer implements customer.Repository.
func (r *Postgres) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

const orderColumns = `id, customer_id, customer_name, customer_email, shipping_address, items, subtotal,
	automatic_savings, manual_savings, total, applied_discount, status, payment_method, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o       order.Order
		items   []byte
		applied []byte
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &o.ShippingAddress, &items, &o.Subtotal,
		&o.AutomaticSavings, &o.ManualSavings, &o.Total, &applied, &o.Status, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(applied, &o.AppliedDiscount); err != nil {
		return order.Order{}, fmt.Errorf("decode applied discount: %w", err)
	}
	return o, nil
}

// InsertOrder implements order.Repository.
func (r *Postgres) InsertOrder(ctx context.Context, o order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	applied, err := json.Marshal(o.AppliedDiscount)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.CustomerID, o.CustomerName, o.CustomerEmail, o.ShippingAddress, items, o.Subtotal,
		o.AutomaticSavings, o.ManualSavings, o.Total, applied, string(o.Status), o.PaymentMethod, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err, "") {
		return order.ErrDuplicateID
	}
	return err
}

// GetOrder implements order.Repository.
func (r *Postgres) GetOrder(ctx context.Context, id string) (order.Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// ListOrders implements order.Repository.
func (r *Postgres) ListOrders(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR customer_id = $1) ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus implements order.Repository with a compare-and-set.
func (r *Postgres) UpdateOrderStatus(ctx context.Context, id string, from, to order.Status, at time.Time) error {
	tag, err := r.DB.Exec(ctx, `UPDATE orders SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2`,
		id, string(from), string(to), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStatusConflict
}

// InsertEvent implements events.Store.
func (r *Postgres) InsertEvent(ctx context.Context, ev events.Event) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at) VALUES ($1,$2,$3,$4,$5)`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	return err
}
