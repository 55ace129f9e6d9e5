package billing

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/didgateway/llm-gateway/common/config"
	relaymodel "github.com/didgateway/llm-gateway/relay/model"
)

// costRow is the persisted form of a CostRecord.
type costRow struct {
	Id               int       `gorm:"primaryKey;autoIncrement"`
	RequestId        string    `gorm:"index;size:64"`
	CallerDid        string    `gorm:"index;size:256"`
	Provider         string    `gorm:"size:64"`
	Model            string    `gorm:"size:128"`
	PromptTokens     int       `gorm:"default:0"`
	CompletionTokens int       `gorm:"default:0"`
	TotalTokens      int       `gorm:"default:0"`
	CostUsd          float64   `gorm:"type:decimal(20,12)"`
	Source           string    `gorm:"size:32"`
	Estimated        bool      `gorm:"default:false"`
	Streaming        bool      `gorm:"default:false"`
	StatusCode       int       `gorm:"default:0"`
	ElapsedMs        int64     `gorm:"default:0"`
	CreatedAt        time.Time `gorm:"index"`
}

func (costRow) TableName() string { return "cost_records" }

// Ledger persists finalized cost records and serves admin queries. It is the
// default billing hook when no external hook is injected.
type Ledger struct {
	db *gorm.DB
}

// OpenLedger connects to the configured database: SQL_DSN selects mysql or
// postgres by its scheme, otherwise SQLite at SQLITE_PATH.
func OpenLedger() (*Ledger, error) {
	var dialector gorm.Dialector
	switch {
	case config.SQLDSN == "":
		dialector = sqlite.Open(config.SQLitePath)
	case strings.HasPrefix(config.SQLDSN, "postgres://"),
		strings.HasPrefix(config.SQLDSN, "postgresql://"):
		dialector = postgres.Open(config.SQLDSN)
	default:
		dialector = mysql.Open(config.SQLDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open ledger database")
	}
	if err := db.AutoMigrate(&costRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate cost_records")
	}
	return &Ledger{db: db}, nil
}

// Bill implements Hook by inserting one row per finalized record.
func (l *Ledger) Bill(ctx context.Context, record *relaymodel.CostRecord) error {
	row := &costRow{
		RequestId:        record.RequestId,
		CallerDid:        record.CallerDid,
		Provider:         record.Provider,
		Model:            record.Model,
		PromptTokens:     record.PromptTokens,
		CompletionTokens: record.CompletionTokens,
		TotalTokens:      record.TotalTokens,
		CostUsd:          record.CostUsd,
		Source:           record.Source,
		Estimated:        record.Estimated,
		Streaming:        record.Streaming,
		StatusCode:       record.StatusCode,
		ElapsedMs:        record.ElapsedMs,
		CreatedAt:        record.CreatedAt,
	}
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrap(err, "insert cost record")
	}
	return nil
}

// QueryByRequestId returns the persisted records for one request id, newest
// first.
func (l *Ledger) QueryByRequestId(ctx context.Context, requestId string) ([]relaymodel.CostRecord, error) {
	var rows []costRow
	err := l.db.WithContext(ctx).
		Where("request_id = ?", requestId).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query cost records")
	}
	records := make([]relaymodel.CostRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, relaymodel.CostRecord{
			RequestId:        row.RequestId,
			CallerDid:        row.CallerDid,
			Provider:         row.Provider,
			Model:            row.Model,
			PromptTokens:     row.PromptTokens,
			CompletionTokens: row.CompletionTokens,
			TotalTokens:      row.TotalTokens,
			CostUsd:          row.CostUsd,
			Source:           row.Source,
			Estimated:        row.Estimated,
			Streaming:        row.Streaming,
			StatusCode:       row.StatusCode,
			ElapsedMs:        row.ElapsedMs,
			CreatedAt:        row.CreatedAt,
		})
	}
	return records, nil
}
