// Package archive exports and imports an instance's committed log as
// zstd-compressed JSONL. The first line is a meta header; every following
// line is one committed transaction. The journal stays the source of
// truth; archives make it portable across stores and deployments.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

const formatVersion = 1

// Meta is the archive header line.
type Meta struct {
	Version           int       `json:"version"`
	InstanceID        string    `json:"instance_id"`
	CampaignRef       string    `json:"campaign_ref"`
	HeroID            string    `json:"hero_id"`
	TailSeq           uint64    `json:"tail_seq"`
	CreatedAt         time.Time `json:"created_at"`
	InstanceCreatedAt time.Time `json:"instance_created_at"`
	InstanceUpdatedAt time.Time `json:"instance_updated_at"`
}

// transactionV1 is the archived wire form of one committed transaction.
type transactionV1 struct {
	ID             string            `json:"id"`
	InstanceID     string            `json:"instance_id"`
	Kind           string            `json:"kind"`
	Status         string            `json:"status"`
	HeroID         string            `json:"hero_id,omitempty"`
	Seq            uint64            `json:"seq"`
	BaselineSeq    uint64            `json:"baseline_seq"`
	OccurredAt     time.Time         `json:"occurred_at"`
	CanonicalAt    time.Time         `json:"canonical_at"`
	CommittedAt    time.Time         `json:"committed_at"`
	Attrs          map[string]string `json:"attrs,omitempty"`
	Hash           string            `json:"hash"`
	PrevHash       string            `json:"prev_hash,omitempty"`
	ChainHash      string            `json:"chain_hash"`
	Signature      string            `json:"signature,omitempty"`
	SignatureKeyID string            `json:"signature_key_id,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
}

func toV1(tx transaction.Transaction) transactionV1 {
	return transactionV1{
		ID:             tx.ID,
		InstanceID:     tx.InstanceID,
		Kind:           string(tx.Kind),
		Status:         string(tx.Status),
		HeroID:         tx.HeroID,
		Seq:            tx.Seq,
		BaselineSeq:    tx.BaselineSeq,
		OccurredAt:     tx.OccurredAt,
		CanonicalAt:    tx.CanonicalAt,
		CommittedAt:    tx.CommittedAt,
		Attrs:          tx.Attrs,
		Hash:           tx.Hash,
		PrevHash:       tx.PrevHash,
		ChainHash:      tx.ChainHash,
		Signature:      tx.Signature,
		SignatureKeyID: tx.SignatureKeyID,
		RequestID:      tx.RequestID,
	}
}

func fromV1(rec transactionV1) transaction.Transaction {
	return transaction.Transaction{
		ID:             rec.ID,
		InstanceID:     rec.InstanceID,
		Kind:           transaction.Kind(rec.Kind),
		Status:         transaction.Status(rec.Status),
		HeroID:         rec.HeroID,
		Seq:            rec.Seq,
		BaselineSeq:    rec.BaselineSeq,
		OccurredAt:     rec.OccurredAt,
		CanonicalAt:    rec.CanonicalAt,
		CommittedAt:    rec.CommittedAt,
		Attrs:          rec.Attrs,
		Hash:           rec.Hash,
		PrevHash:       rec.PrevHash,
		ChainHash:      rec.ChainHash,
		Signature:      rec.Signature,
		SignatureKeyID: rec.SignatureKeyID,
		RequestID:      rec.RequestID,
	}
}

// Export writes the instance's committed log to w.
func Export(ctx context.Context, store storage.Store, instanceID string, w io.Writer) (Meta, error) {
	rec, err := store.GetInstance(ctx, instanceID)
	if err != nil {
		return Meta{}, fmt.Errorf("load instance %s: %w", instanceID, err)
	}
	log, err := store.ListCommitted(ctx, instanceID, 0, 0)
	if err != nil {
		return Meta{}, fmt.Errorf("list committed: %w", err)
	}
	meta := Meta{
		Version:           formatVersion,
		InstanceID:        rec.ID,
		CampaignRef:       rec.CampaignRef,
		HeroID:            rec.HeroID,
		TailSeq:           uint64(len(log)),
		CreatedAt:         time.Now().UTC(),
		InstanceCreatedAt: rec.CreatedAt,
		InstanceUpdatedAt: rec.UpdatedAt,
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return Meta{}, fmt.Errorf("create encoder: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := writeLine(bw, meta); err != nil {
		_ = enc.Close()
		return Meta{}, err
	}
	for _, tx := range log {
		if err := writeLine(bw, toV1(tx)); err != nil {
			_ = enc.Close()
			return Meta{}, err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return Meta{}, fmt.Errorf("flush archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Meta{}, fmt.Errorf("close encoder: %w", err)
	}
	return meta, nil
}

// ExportFile writes the instance's committed log to path, creating parent
// directories as needed.
func ExportFile(ctx context.Context, store storage.Store, instanceID, path string) (Meta, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Meta{}, err
	}
	meta, err := Export(ctx, store, instanceID, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		return Meta{}, closeErr
	}
	return meta, err
}

// Import restores an archive into the store: the instance record first,
// then the committed log verbatim. The target instance's journal must be
// empty. Derived-state caches for the instance must be invalidated by the
// caller afterward.
func Import(ctx context.Context, store storage.Store, r io.Reader) (Meta, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Meta{}, fmt.Errorf("create decoder: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 256*1024)

	header, err := readLine(br)
	if err != nil {
		return Meta{}, fmt.Errorf("read meta header: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(header, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode meta header: %w", err)
	}
	if meta.Version != formatVersion {
		return Meta{}, fmt.Errorf("unsupported archive version %d", meta.Version)
	}
	if meta.InstanceID == "" {
		return Meta{}, fmt.Errorf("archive meta has no instance id")
	}

	txs := make([]transaction.Transaction, 0, meta.TailSeq)
	for {
		line, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Meta{}, fmt.Errorf("read transaction line: %w", err)
		}
		var rec transactionV1
		if err := json.Unmarshal(line, &rec); err != nil {
			return Meta{}, fmt.Errorf("decode transaction line: %w", err)
		}
		if rec.InstanceID != meta.InstanceID {
			return Meta{}, fmt.Errorf("transaction %s belongs to %s, archive is for %s",
				rec.ID, rec.InstanceID, meta.InstanceID)
		}
		txs = append(txs, fromV1(rec))
	}
	if uint64(len(txs)) != meta.TailSeq {
		return Meta{}, fmt.Errorf("archive holds %d transactions, meta tail is %d", len(txs), meta.TailSeq)
	}

	if err := store.PutInstance(ctx, storage.InstanceRecord{
		ID:          meta.InstanceID,
		CampaignRef: meta.CampaignRef,
		HeroID:      meta.HeroID,
		CreatedAt:   meta.InstanceCreatedAt,
		UpdatedAt:   meta.InstanceUpdatedAt,
	}); err != nil {
		return Meta{}, fmt.Errorf("restore instance %s: %w", meta.InstanceID, err)
	}
	if err := store.ImportCommitted(ctx, meta.InstanceID, txs); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// ImportFile restores an archive from path.
func ImportFile(ctx context.Context, store storage.Store, path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()
	return Import(ctx, store, f)
}

func writeLine(bw *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode archive line: %w", err)
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

// readLine returns the next non-empty line without its terminator. io.EOF
// means the archive is exhausted.
func readLine(br *bufio.Reader) ([]byte, error) {
	for {
		line, err := br.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			return trimmed, nil
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}
