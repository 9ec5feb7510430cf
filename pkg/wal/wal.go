package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
const FileModePrivate fs.FileMode = 0600

// logFile WAL 需要的檔案操作 (*os.File)
type logFile interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
	Stat() (fs.FileInfo, error)
}

// WAL 以 JSON Lines 追加寫入的日誌，每筆寫入後 fsync
type WAL struct {
	path string
	file logFile
	mu   sync.Mutex
	// broken 無法重新開檔或無法清掉失敗寫入的殘段，後續寫入一律失敗
	broken error
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	return &WAL{
		path: path,
		file: file,
		mu:   sync.Mutex{},
	}, nil
}

// Write 寫入一筆資料並刷入硬碟
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return w.broken
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	end := info.Size()

	_, err = w.file.Write(buf.Bytes())
	if err == nil {
		err = w.file.Sync()
	}
	if err != nil {
		// 失敗的寫入不能留在檔尾，否則下一筆會黏在殘段後面，
		// fsync 失敗的完整一行也可能在重啟後復活
		w.discardFrom(end)
		return err
	}
	return nil
}

// discardFrom 把檔案截回 end；截不回去就停用寫入
func (w *WAL) discardFrom(end int64) {
	if err := w.file.Truncate(end); err != nil {
		w.broken = fmt.Errorf("wal truncate after failed write: %w", err)
		return
	}
	if err := w.file.Sync(); err != nil {
		w.broken = fmt.Errorf("wal sync after truncate: %w", err)
	}
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 讀取所有完整的資料行
// callback 是一個函式，接收一行 JSON
// 這樣可以避免一次將所有資料載入記憶體
//
// 回傳:
//
//	torn: 檔尾是否有寫到一半 (沒有換行) 的資料，這段資料不會交給 callback
//	err: 讀取或 callback 錯誤
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) (torn bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return false, err
	}

	reader := bufio.NewReader(w.file)
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// 沒有換行結尾的殘段代表寫入時當機
			return len(bytes.TrimSpace(line)) > 0, nil
		}
		if err != nil {
			return false, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := callback(line); err != nil {
			return false, err
		}
	}
}

// Rewrite 以 records 取代整個日誌 (壓縮用)，透過 tmp + rename 完成
func (w *WAL) Rewrite(records ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if err := WriteFileAtomic(w.path, buf.Bytes(), FileModePrivate); err != nil {
		return err
	}

	// rename 後舊的 fd 指向已被取代的檔案，必須重新開啟
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_RDWR, FileModePrivate)
	if err != nil {
		w.broken = fmt.Errorf("wal reopen after rewrite: %w", err)
		return w.broken
	}
	old := w.file
	w.file = file
	return old.Close()
}

// WriteFileAtomic 先寫 path+".tmp" 並 fsync，再 rename 取代正式檔
// 寫入中斷 (停電或程式崩潰) 時原檔不會損壞
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	// 讓 rename 本身落地；部分平台不支援目錄 fsync，失敗時忽略
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		_ = dir.Sync()
		dir.Close()
	}
	return nil
}
