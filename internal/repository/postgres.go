// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bookstore-checkout/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProductNotFound возвращается, если товар из корзины отсутствует в каталоге.
var (
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ с указанным номером не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProfileNotFound возвращается, если профиль покупателя не найден.
	ErrProfileNotFound = errors.New("user profile not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetProductsByIDs возвращает товары по списку идентификаторов.
// Отсутствующие товары просто не попадают в результат.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	if len(ids) == 0 {
		return map[int64]model.Product{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, price::text
		 FROM products
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]model.Product, len(ids))
	for rows.Next() {
		var (
			p        model.Product
			priceRaw string
		)
		if err := rows.Scan(&p.ID, &p.Title, &priceRaw); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		p.Price, err = decimal.NewFromString(priceRaw)
		if err != nil {
			return nil, fmt.Errorf("parse product price: %w", err)
		}

		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// GetActiveSales возвращает акции, действующие в указанную дату, вместе с
// наборами товаров. Порядок: сначала более ранняя дата начала, затем меньший id.
func (r *PostgresRepository) GetActiveSales(ctx context.Context, today time.Time) ([]model.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.percentage, s.start_date, s.end_date,
		        COALESCE(array_agg(sp.product_id) FILTER (WHERE sp.product_id IS NOT NULL), '{}')
		 FROM sales s
		 LEFT JOIN sale_products sp ON sp.sale_id = s.id
		 WHERE s.start_date <= $1 AND s.end_date >= $1
		 GROUP BY s.id
		 ORDER BY s.start_date, s.id`,
		today,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		var s model.Sale
		if err := rows.Scan(&s.ID, &s.Percentage, &s.StartDate, &s.EndDate, &s.ProductIDs); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sales, nil
}

// CreateOrderWithItems создаёт заказ и все его позиции в одной транзакции.
// Если заказ для этого платёжного намерения уже существует, возвращается его
// номер и признак повторной отправки; ничего нового не создаётся.
// Нарушение внешнего ключа на товар откатывает заказ целиком и
// возвращается ErrProductNotFound.
func (r *PostgresRepository) CreateOrderWithItems(ctx context.Context, order *model.Order, items []model.OrderLineItem) (string, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders
		   (order_number, full_name, email, phone_number, country, postcode,
		    town_or_city, street_address1, street_address2, county,
		    payment_intent_id, original_bag, delivery_cost, order_total, grand_total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (payment_intent_id) DO NOTHING
		 RETURNING id`,
		order.OrderNumber, order.FullName, order.Email, order.PhoneNumber,
		order.Country, order.Postcode, order.TownOrCity,
		order.StreetAddress1, order.StreetAddress2, order.County,
		order.PaymentIntentID, order.OriginalBag,
		order.DeliveryCost.StringFixed(2), order.OrderTotal.StringFixed(2),
		order.GrandTotal.StringFixed(2),
	).Scan(&orderID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Повторная отправка той же оплаты: заказ уже создан ранее.
		var existingNumber string
		err = tx.QueryRow(ctx,
			`SELECT order_number FROM orders WHERE payment_intent_id = $1`,
			order.PaymentIntentID,
		).Scan(&existingNumber)
		if err != nil {
			return "", false, fmt.Errorf("select existing order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return "", false, fmt.Errorf("commit tx: %w", err)
		}

		return existingNumber, true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_line_items (order_id, product_id, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5)`,
			orderID, item.ProductID, item.Quantity,
			item.UnitPrice.StringFixed(2), item.LineTotal.StringFixed(2),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return "", false, fmt.Errorf("%w: id %d", ErrProductNotFound, item.ProductID)
			}
			return "", false, fmt.Errorf("insert line item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit tx: %w", err)
	}

	return order.OrderNumber, false, nil
}

// GetOrderByNumber возвращает заказ по его номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, order_number, user_profile_id, full_name, email, phone_number,
		        country, postcode, town_or_city, street_address1, street_address2,
		        county, payment_intent_id, original_bag,
		        delivery_cost::text, order_total::text, grand_total::text, created_at
		 FROM orders
		 WHERE order_number = $1`,
		number,
	)

	var (
		o                               model.Order
		deliveryRaw, totalRaw, grandRaw string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserProfileID, &o.FullName, &o.Email,
		&o.PhoneNumber, &o.Country, &o.Postcode, &o.TownOrCity,
		&o.StreetAddress1, &o.StreetAddress2, &o.County,
		&o.PaymentIntentID, &o.OriginalBag,
		&deliveryRaw, &totalRaw, &grandRaw, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if o.DeliveryCost, err = decimal.NewFromString(deliveryRaw); err != nil {
		return nil, fmt.Errorf("parse delivery cost: %w", err)
	}
	if o.OrderTotal, err = decimal.NewFromString(totalRaw); err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	if o.GrandTotal, err = decimal.NewFromString(grandRaw); err != nil {
		return nil, fmt.Errorf("parse grand total: %w", err)
	}

	return &o, nil
}

// AttachProfileToOrder связывает заказ с профилем покупателя.
func (r *PostgresRepository) AttachProfileToOrder(ctx context.Context, orderID, profileID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET user_profile_id = $2 WHERE id = $1`,
		orderID, profileID,
	)
	if err != nil {
		return fmt.Errorf("attach profile: %w", err)
	}
	return nil
}

// GetProfile возвращает профиль покупателя по идентификатору.
func (r *PostgresRepository) GetProfile(ctx context.Context, id int64) (*model.UserProfile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, full_name, email,
		        default_phone_number, default_country, default_postcode,
		        default_town_or_city, default_street_address1,
		        default_street_address2, default_county
		 FROM user_profiles
		 WHERE id = $1`,
		id,
	)

	var p model.UserProfile
	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Email,
		&p.PhoneNumber, &p.Country, &p.Postcode, &p.TownOrCity,
		&p.StreetAddress1, &p.StreetAddress2, &p.County)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// UpdateProfileAddress обновляет адрес доставки по умолчанию в профиле покупателя.
func (r *PostgresRepository) UpdateProfileAddress(ctx context.Context, profileID int64, addr model.DefaultAddress) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_profiles
		 SET default_phone_number = $2,
		     default_country = $3,
		     default_postcode = $4,
		     default_town_or_city = $5,
		     default_street_address1 = $6,
		     default_street_address2 = $7,
		     default_county = $8
		 WHERE id = $1`,
		profileID, addr.PhoneNumber, addr.Country, addr.Postcode,
		addr.TownOrCity, addr.StreetAddress1, addr.StreetAddress2, addr.County,
	)
	if err != nil {
		return fmt.Errorf("update profile address: %w", err)
	}
	return nil
}
