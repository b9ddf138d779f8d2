package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yashrajoria/catalog-import/services/product-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// dynamoAPI is the subset of *dynamodb.Client the repository uses.
type dynamoAPI interface {
	dynamodb.ScanAPIClient
	dynamodb.DescribeTableAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoCatalogRepository stores products keyed by `id` and stocks keyed by
// `productId` in two tables.
type DynamoCatalogRepository struct {
	client        dynamoAPI
	productsTable string
	stocksTable   string
}

func NewDynamoCatalogRepository(client dynamoAPI, productsTable, stocksTable string) *DynamoCatalogRepository {
	return &DynamoCatalogRepository{client: client, productsTable: productsTable, stocksTable: stocksTable}
}

type ddbProduct struct {
	ID          string  `dynamodbav:"id"`
	Title       string  `dynamodbav:"title"`
	Description string  `dynamodbav:"description"`
	Price       float64 `dynamodbav:"price"`
}

type ddbStock struct {
	ProductID string `dynamodbav:"productId"`
	Count     int    `dynamodbav:"count"`
}

func (d *DynamoCatalogRepository) CreateWithStock(ctx context.Context, product models.Product, stock models.Stock) error {
	if product.ID != stock.ProductID {
		return fmt.Errorf("stock product id %s does not match product %s", stock.ProductID, product.ID)
	}

	productItem, err := attributevalue.MarshalMap(ddbProduct{
		ID:          product.ID.String(),
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
	})
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	stockItem, err := attributevalue.MarshalMap(ddbStock{
		ProductID: stock.ProductID.String(),
		Count:     stock.Count,
	})
	if err != nil {
		return fmt.Errorf("marshal stock: %w", err)
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &d.productsTable,
				Item:                productItem,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
			{Put: &types.Put{
				TableName:           &d.stocksTable,
				Item:                stockItem,
				ConditionExpression: aws.String("attribute_not_exists(productId)"),
			}},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("transaction canceled [%s]: %w", cancellationCodes(canceled), err)
		}
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return nil
}

// cancellationCodes lists one code per transaction item, "None" for items
// that did not cause the cancellation.
func cancellationCodes(e *types.TransactionCanceledException) string {
	codes := make([]string, 0, len(e.CancellationReasons))
	for _, r := range e.CancellationReasons {
		codes = append(codes, aws.ToString(r.Code))
	}
	return strings.Join(codes, ",")
}

func (d *DynamoCatalogRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductWithStock, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &d.productsTable, Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dp ddbProduct
	if err := attributevalue.UnmarshalMap(out.Item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}

	stockKey, err := attributevalue.MarshalMap(map[string]string{"productId": id.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	stockOut, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &d.stocksTable, Key: stockKey})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	count := 0
	if len(stockOut.Item) > 0 {
		var ds ddbStock
		if err := attributevalue.UnmarshalMap(stockOut.Item, &ds); err != nil {
			return nil, fmt.Errorf("unmarshal stock: %w", err)
		}
		count = ds.Count
	}

	return &models.ProductWithStock{Product: toProduct(dp), Count: count}, nil
}

// List scans both tables and joins them in memory, ordered by title then id.
// Products without a stock row get a count of 0.
func (d *DynamoCatalogRepository) List(ctx context.Context) ([]models.ProductWithStock, error) {
	counts := make(map[string]int)
	stocks := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: &d.stocksTable})
	for stocks.HasMorePages() {
		page, err := stocks.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan stocks failed: %w", err)
		}
		var items []ddbStock
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal stocks: %w", err)
		}
		for _, s := range items {
			counts[s.ProductID] = s.Count
		}
	}

	var results []models.ProductWithStock
	products := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: &d.productsTable})
	for products.HasMorePages() {
		page, err := products.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products failed: %w", err)
		}
		var items []ddbProduct
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		for _, p := range items {
			results = append(results, models.ProductWithStock{Product: toProduct(p), Count: counts[p.ID]})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Title != results[j].Title {
			return results[i].Title < results[j].Title
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	return results, nil
}

// EnsureTables creates either table if it does not exist and waits for it
// to become active.
func (d *DynamoCatalogRepository) EnsureTables(ctx context.Context) error {
	for _, t := range []struct{ name, key string }{
		{d.productsTable, "id"},
		{d.stocksTable, "productId"},
	} {
		_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
		if err == nil {
			continue
		}
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("describe table %s: %w", t.name, err)
		}

		_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName:            aws.String(t.name),
			BillingMode:          types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{{AttributeName: aws.String(t.key), AttributeType: types.ScalarAttributeTypeS}},
			KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String(t.key), KeyType: types.KeyTypeHash}},
		})
		if err != nil {
			var inUse *types.ResourceInUseException
			if !errors.As(err, &inUse) {
				return fmt.Errorf("create table %s: %w", t.name, err)
			}
		}
		waiter := dynamodb.NewTableExistsWaiter(d.client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", t.name, err)
		}
	}
	return nil
}

func toProduct(dp ddbProduct) models.Product {
	id, _ := uuid.Parse(dp.ID)
	return models.Product{
		ID:          id,
		Title:       dp.Title,
		Description: dp.Description,
		Price:       dp.Price,
	}
}
