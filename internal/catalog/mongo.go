package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/text/currency"
)

const productsCollection = "products"

// ConnectMongoDB creates a pooled client and verifies the connection.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Join(
			fmt.Errorf("client.Ping: %w", err),
			client.Disconnect(context.WithoutCancel(ctx)),
		)
	}

	return client.Database(database), nil
}

type productDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Category    string             `bson:"category"`
	Image       string             `bson:"image"`
	Stock       int                `bson:"stock"`
}

// mongoCatalog reads the products collection owned by the catalog service.
// Prices are stored as plain numbers in the store currency.
type mongoCatalog struct {
	products *mongo.Collection
	currency currency.Unit
}

func NewMongo(db *mongo.Database, cur currency.Unit) port.Catalog {
	return &mongoCatalog{
		products: db.Collection(productsCollection),
		currency: cur,
	}
}

func (c *mongoCatalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product

	id, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return p, fmt.Errorf("product[%s]: %w", productID, domain.ErrNotFound)
	}

	var doc productDocument
	if err := c.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return p, fmt.Errorf("product[%s]: %w", productID, domain.ErrNotFound)
		}
		return p, fmt.Errorf("products.FindOne: %w", err)
	}

	return domain.Product{
		ID:       doc.ID.Hex(),
		Name:     doc.Title,
		Category: doc.Category,
		Image:    doc.Image,
		Price:    domain.NewMoney(decimal.NewFromFloat(doc.Price), c.currency),
		Stock:    doc.Stock,
	}, nil
}
