package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Sophix-ma/Mindra/internal/biz"
	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// 默认流水文件路径（与历史版本的数据目录兼容）
const defaultLedgerPath = "Mindra_data/llm_history.csv"

// usageLedgerRepo CSV 文件流水
// 正常运行只追加，仅按用户清空时整体重写；
// 与其他进程的并发读允许短暂不一致（行只增不改）
type usageLedgerRepo struct {
	path string
	mu   sync.Mutex
	rs   *redsync.Redsync
	log  *log.Helper
}

// NewUsageLedgerRepo 创建流水 repo（返回 biz.UsageLedgerRepo 接口）
func NewUsageLedgerRepo(c *conf.Bootstrap, data *Data, logger log.Logger) biz.UsageLedgerRepo {
	path := defaultLedgerPath
	if c != nil && c.Data != nil && c.Data.Ledger != nil && c.Data.Ledger.Path != "" {
		path = c.Data.Ledger.Path
	}
	return &usageLedgerRepo{
		path: path,
		rs:   data.rs,
		log:  log.NewHelper(logger),
	}
}

// Append 追加一条流水，文件不存在时先写表头
func (r *usageLedgerRepo) Append(ctx context.Context, record *biz.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	_, statErr := os.Stat(r.path)
	fileExists := statErr == nil

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !fileExists {
		if err := w.Write(constants.LedgerHeader); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(toRow(record)); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// History 读取用户全部流水，按创建时间倒序
// 文件不存在视为无历史
func (r *usageLedgerRepo) History(ctx context.Context, userID string) ([]*biz.UsageRecord, error) {
	r.mu.Lock()
	rows, err := r.readAll()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var records []*biz.UsageRecord
	for _, row := range rows {
		if len(row) < 6 || row[0] != userID {
			continue
		}
		rec, parseErr := fromRow(row)
		if parseErr != nil {
			r.log.Warnf("skip malformed ledger row: %v", parseErr)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Purge 删除该用户全部流水，其他用户的行保持不变
// 重写期间持有跨进程互斥锁（有 Redis 时），文件不存在视为成功
func (r *usageLedgerRepo) Purge(ctx context.Context, userID string) error {
	if r.rs != nil {
		mutex := r.rs.NewMutex(constants.RedisKeyLedgerLock+filepath.Base(r.path),
			redsync.WithExpiry(10*time.Second))
		if err := mutex.LockContext(ctx); err != nil {
			return fmt.Errorf("acquire ledger lock: %w", err)
		}
		defer func() {
			if _, err := mutex.UnlockContext(ctx); err != nil {
				r.log.Warnf("release ledger lock failed: %v", err)
			}
		}()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readAll()
	if err != nil {
		return err
	}
	if rows == nil {
		// 文件不存在或为空，无事可做
		return nil
	}

	kept := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && row[0] == userID {
			continue
		}
		kept = append(kept, row)
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("rewrite ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(constants.LedgerHeader); err != nil {
		return err
	}
	if err := w.WriteAll(kept); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// RollupSince 统计 since 之后所有用户的流水，按分类聚合
func (r *usageLedgerRepo) RollupSince(ctx context.Context, since time.Time) ([]*biz.AssignmentRollup, error) {
	r.mu.Lock()
	rows, err := r.readAll()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	byAssignment := make(map[string]*biz.AssignmentRollup)
	order := make([]string, 0, 4)
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		rec, parseErr := fromRow(row)
		if parseErr != nil {
			r.log.Warnf("skip malformed ledger row: %v", parseErr)
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		agg, ok := byAssignment[rec.Assignment]
		if !ok {
			agg = &biz.AssignmentRollup{Assignment: rec.Assignment}
			byAssignment[rec.Assignment] = agg
			order = append(order, rec.Assignment)
		}
		agg.Records++
		agg.InputTokens += rec.InputTokens
		agg.OutputTokens += rec.OutputTokens
		agg.CreditUsage += rec.CreditUsage
	}

	rollups := make([]*biz.AssignmentRollup, 0, len(order))
	for _, name := range order {
		rollups = append(rollups, byAssignment[name])
	}
	return rollups, nil
}

// readAll 读出全部数据行（不含表头）；文件缺失返回 (nil, nil)
func (r *usageLedgerRepo) readAll() ([][]string, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(rows) <= 1 {
		return [][]string{}, nil
	}
	return rows[1:], nil
}

func toRow(rec *biz.UsageRecord) []string {
	return []string{
		rec.UserID,
		rec.Assignment,
		strconv.Itoa(rec.InputTokens),
		strconv.Itoa(rec.OutputTokens),
		strconv.FormatFloat(rec.CreditUsage, 'f', 4, 64),
		rec.CreatedAt.Format(time.RFC3339Nano),
	}
}

func fromRow(row []string) (*biz.UsageRecord, error) {
	inputTokens, err := strconv.Atoi(row[2])
	if err != nil {
		return nil, fmt.Errorf("input tokens %q: %w", row[2], err)
	}
	outputTokens, err := strconv.Atoi(row[3])
	if err != nil {
		return nil, fmt.Errorf("output tokens %q: %w", row[3], err)
	}
	credit, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return nil, fmt.Errorf("credit usage %q: %w", row[4], err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row[5])
	if err != nil {
		return nil, fmt.Errorf("created_at %q: %w", row[5], err)
	}
	return &biz.UsageRecord{
		UserID:       row[0],
		Assignment:   row[1],
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CreditUsage:  credit,
		CreatedAt:    createdAt,
	}, nil
}
