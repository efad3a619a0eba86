package stub

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vanmilkco/storefront/internal/modules/catalog"
)

// postgresProductStore serves the catalog from Postgres. The rest of the
// stub stays in memory; products are the one dataset worth sharing between
// stub instances during development.
type postgresProductStore struct {
	db *sql.DB
}

// NewPostgresProductStore connects to databaseURL and verifies the
// connection.
func NewPostgresProductStore(databaseURL string) (ProductStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &postgresProductStore{db: db}, nil
}

func (r *postgresProductStore) ListProducts(ctx context.Context, search, category string) ([]catalog.Product, error) {
	query := `
		SELECT p.id, p.name, p.slug, p.description, p.price_cents, p.image_url, p.is_active,
		       c.id, c.name, c.slug
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active = TRUE
		  AND ($1 = '' OR p.name ILIKE '%' || $1 || '%' OR p.description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR c.slug = $2)
		ORDER BY p.id
	`
	rows, err := r.db.QueryContext(ctx, query, search, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		var imageURL sql.NullString
		var catID sql.NullInt64
		var catName, catSlug sql.NullString
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Slug,
			&p.Description,
			&p.PriceCents,
			&imageURL,
			&p.IsActive,
			&catID,
			&catName,
			&catSlug,
		)
		if err != nil {
			return nil, err
		}
		p.ImageURL = imageURL.String
		if catID.Valid {
			p.Category = &catalog.Category{
				ID:   int(catID.Int64),
				Name: catName.String,
				Slug: catSlug.String,
			}
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *postgresProductStore) GetProduct(ctx context.Context, id int) (*catalog.Product, error) {
	query := `
		SELECT p.id, p.name, p.slug, p.description, p.price_cents, p.image_url, p.is_active
		FROM products p
		WHERE p.id = $1
	`
	p := &catalog.Product{}
	var imageURL sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.PriceCents,
		&imageURL,
		&p.IsActive,
	)
	if err != nil {
		return nil, err
	}
	p.ImageURL = imageURL.String
	return p, nil
}
