package tts

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/iabetor/kitten-say/internal/audio"
	"github.com/iabetor/kitten-say/internal/database"
	"github.com/iabetor/kitten-say/internal/logger"
)

// CacheEntry 缓存索引中的一条记录。
type CacheEntry struct {
	Key        string
	Model      string
	Voice      string
	Speed      float64
	TextLen    int
	SampleRate int
	Size       int64
	Hits       int64
	CreatedAt  time.Time
	LastUsed   time.Time
}

// SpeechCache 把合成结果保存为 WAV 文件，索引放在 SQLite 中，
// 总大小超过上限时按最近使用时间淘汰。
type SpeechCache struct {
	mu       sync.Mutex
	cacheDir string
	maxSize  int64 // 最大缓存大小（字节），0 表示禁用缓存
	db       *database.DB
	now      func() time.Time
}

// OpenSpeechCache 创建语音缓存。
// cacheDir 为缓存目录路径，maxSizeMB 为最大缓存大小（MB），0 表示禁用缓存。
func OpenSpeechCache(cacheDir string, maxSizeMB int64) (*SpeechCache, error) {
	sc := &SpeechCache{
		cacheDir: cacheDir,
		maxSize:  maxSizeMB * 1024 * 1024,
		now:      time.Now,
	}
	if maxSizeMB <= 0 {
		sc.maxSize = 0
		return sc, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}

	db, err := database.Open(filepath.Join(cacheDir, "index.db"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	sc.db = db

	sc.validateIndex()
	return sc, nil
}

// Enabled 返回缓存是否启用。
func (sc *SpeechCache) Enabled() bool {
	return sc != nil && sc.maxSize > 0 && sc.db != nil
}

// Key 由模型、音色、语速和文本计算缓存键。
func Key(model string, req Request) string {
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	h := sha256.New()
	for _, part := range []string{model, req.Voice, strconv.FormatFloat(speed, 'f', 3, 64), req.Text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IndexPath 返回 SQLite 索引文件路径，缓存未启用时为空。
func (sc *SpeechCache) IndexPath() string {
	if !sc.Enabled() {
		return ""
	}
	return sc.db.Path()
}

// FilePath 返回缓存文件的完整路径。
func (sc *SpeechCache) FilePath(key string) string {
	return filepath.Join(sc.cacheDir, key+".wav")
}

// Lookup 查找缓存，命中时更新 last_used 并返回音频。
func (sc *SpeechCache) Lookup(key string) (*audio.Buffer, bool) {
	if !sc.Enabled() {
		return nil, false
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var exists int
	err := sc.db.QueryRow(`SELECT 1 FROM speech_cache WHERE cache_key = ?`, key).Scan(&exists)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warnf("[cache] 查询缓存索引失败: %v", err)
		}
		return nil, false
	}

	buf, err := audio.ReadWAV(sc.FilePath(key))
	if err != nil {
		logger.Warnf("[cache] 缓存文件不可用，移除索引: %v", err)
		sc.deleteLocked(key)
		return nil, false
	}

	if _, err := sc.db.Exec(`UPDATE speech_cache SET hits = hits + 1, last_used = ? WHERE cache_key = ?`,
		sc.now().UnixNano(), key); err != nil {
		logger.Warnf("[cache] 更新 last_used 失败: %v", err)
	}
	return buf, true
}

// Store 写入缓存文件和索引，并在超出上限时淘汰旧条目。
func (sc *SpeechCache) Store(key string, entry CacheEntry, buf *audio.Buffer) error {
	if !sc.Enabled() {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	filePath := sc.FilePath(key)
	if err := audio.WriteWAVAtomic(filePath, buf); err != nil {
		return fmt.Errorf("写入缓存文件失败: %w", err)
	}
	if info, err := os.Stat(filePath); err == nil {
		entry.Size = info.Size()
	}

	now := sc.now().UnixNano()
	_, err := sc.db.Exec(`INSERT OR REPLACE INTO speech_cache
		(cache_key, model, voice, speed, text_len, sample_rate, size, hits, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		key, entry.Model, entry.Voice, entry.Speed, entry.TextLen, buf.SampleRate, entry.Size, now, now)
	if err != nil {
		os.Remove(filePath)
		return fmt.Errorf("保存缓存索引失败: %w", err)
	}

	sc.evictLocked()
	logger.Debugf("[cache] 已缓存: %s (%s, %d bytes)", key[:12], entry.Voice, entry.Size)
	return nil
}

// List 返回所有缓存条目，按 last_used 倒序排列。
func (sc *SpeechCache) List() ([]CacheEntry, error) {
	if !sc.Enabled() {
		return nil, nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	rows, err := sc.db.Query(`SELECT cache_key, model, voice, speed, text_len, sample_rate, size, hits, created_at, last_used
		FROM speech_cache ORDER BY last_used DESC`)
	if err != nil {
		return nil, fmt.Errorf("查询缓存索引失败: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var created, used int64
		if err := rows.Scan(&e.Key, &e.Model, &e.Voice, &e.Speed, &e.TextLen, &e.SampleRate, &e.Size, &e.Hits, &created, &used); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)
		e.LastUsed = time.Unix(0, used)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close 关闭索引数据库。
func (sc *SpeechCache) Close() error {
	if sc == nil || sc.db == nil {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	err := sc.db.Close()
	sc.db = nil
	return err
}

// deleteLocked 删除缓存文件和索引（调用方需持有锁）。
func (sc *SpeechCache) deleteLocked(key string) bool {
	filePath := sc.FilePath(key)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		logger.Warnf("[cache] 删除缓存文件失败: %s: %v", filePath, err)
		return false
	}
	if _, err := sc.db.Exec(`DELETE FROM speech_cache WHERE cache_key = ?`, key); err != nil {
		logger.Warnf("[cache] 删除缓存索引失败: %v", err)
		return false
	}
	return true
}

// validateIndex 移除本地文件不存在的条目。
func (sc *SpeechCache) validateIndex() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	rows, err := sc.db.Query(`SELECT cache_key FROM speech_cache`)
	if err != nil {
		logger.Warnf("[cache] 读取缓存索引失败: %v", err)
		return
	}
	var missing []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		if _, err := os.Stat(sc.FilePath(key)); err != nil {
			missing = append(missing, key)
		}
	}
	rows.Close()

	for _, key := range missing {
		sc.deleteLocked(key)
	}
	if len(missing) > 0 {
		logger.Infof("[cache] 索引校验：移除 %d 个无效条目", len(missing))
	}
}

// evictLocked 检查缓存总大小并淘汰最久未使用的条目（调用方需持有锁）。
func (sc *SpeechCache) evictLocked() {
	var totalSize int64
	if err := sc.db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM speech_cache`).Scan(&totalSize); err != nil {
		logger.Warnf("[cache] 统计缓存大小失败: %v", err)
		return
	}
	if totalSize <= sc.maxSize {
		return
	}

	rows, err := sc.db.Query(`SELECT cache_key, size FROM speech_cache ORDER BY last_used ASC`)
	if err != nil {
		logger.Warnf("[cache] 读取缓存索引失败: %v", err)
		return
	}
	type victim struct {
		key  string
		size int64
	}
	var candidates []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.key, &v.size); err == nil {
			candidates = append(candidates, v)
		}
	}
	rows.Close()

	for _, v := range candidates {
		if totalSize <= sc.maxSize {
			break
		}
		if sc.deleteLocked(v.key) {
			totalSize -= v.size
			logger.Debugf("[cache] LRU 淘汰: %s (%d bytes)", v.key[:12], v.size)
		}
	}
}

// CachedEngine 在调用底层引擎前先查询语音缓存。
type CachedEngine struct {
	next  Engine
	cache *SpeechCache
	model string
}

// NewCachedEngine 用缓存包装 next；缓存未启用时直接返回 next。
func NewCachedEngine(next Engine, cache *SpeechCache, model string) Engine {
	if !cache.Enabled() {
		return next
	}
	return &CachedEngine{next: next, cache: cache, model: model}
}

// Synthesize 优先返回缓存结果，未命中时合成并写入缓存。
func (c *CachedEngine) Synthesize(ctx context.Context, req Request) (*audio.Buffer, error) {
	key := Key(c.model, req)
	if buf, ok := c.cache.Lookup(key); ok {
		logger.Debugf("[cache] 命中: %s", key[:12])
		return buf, nil
	}

	buf, err := c.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	entry := CacheEntry{
		Model:   c.model,
		Voice:   req.Voice,
		Speed:   speed,
		TextLen: len([]rune(req.Text)),
	}
	if err := c.cache.Store(key, entry, buf); err != nil {
		logger.Warnf("[cache] 写入缓存失败（忽略）: %v", err)
	}
	return buf, nil
}

// Close 关闭底层引擎和缓存。
func (c *CachedEngine) Close() {
	c.next.Close()
	if err := c.cache.Close(); err != nil {
		logger.Warnf("[cache] 关闭缓存失败: %v", err)
	}
}
