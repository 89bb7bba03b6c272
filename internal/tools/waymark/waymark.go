// Package waymark implements the operator CLI: chain verification,
// history listing, replay audits, archive transfer, and battle replay
// checks against a configured journal store.
package waymark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/waymark-rpg/waymark/internal/battle"
	"github.com/waymark-rpg/waymark/internal/journal"
	"github.com/waymark-rpg/waymark/internal/platform/config"
	"github.com/waymark-rpg/waymark/internal/platform/timeouts"
	"github.com/waymark-rpg/waymark/internal/stateview"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/storage/archive"
	"github.com/waymark-rpg/waymark/internal/storage/bbolt"
	"github.com/waymark-rpg/waymark/internal/storage/cursor"
	"github.com/waymark-rpg/waymark/internal/storage/filter"
	"github.com/waymark-rpg/waymark/internal/storage/integrity"
	"github.com/waymark-rpg/waymark/internal/storage/memory"
	"github.com/waymark-rpg/waymark/internal/storage/postgres"
	"github.com/waymark-rpg/waymark/internal/storage/sqlite"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

const usage = `usage: waymark <command> [args]

commands:
  verify <instance-id>...                  verify hash chain and signatures
  history <instance-id> [filter]           list committed transactions, newest last
  stats [since]                            summarize journal counters, optionally windowed
  replay <instance-id>...                  recompute derived state and audit the latest snapshot
  export <instance-id> <path>              write a portable archive of the committed log
  import <path>                            restore an archived log into an empty instance
  battle verify <instance-id> [battle-id]  re-execute recorded battles against their seeds`

// Config holds operator command configuration. Commands take no flags;
// everything beyond the verb and its arguments comes from WAYMARK_*
// environment variables.
type Config struct {
	StorageDriver string        `env:"WAYMARK_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string        `env:"WAYMARK_SQLITE_PATH"`
	PostgresDSN   string        `env:"WAYMARK_POSTGRES_DSN"`
	SnapshotPath  string        `env:"WAYMARK_SNAPSHOT_PATH"`
	CampaignDir   string        `env:"WAYMARK_CAMPAIGN_DIR"`
	Timeout       time.Duration `env:"WAYMARK_TOOL_TIMEOUT"`
	PageSize      int           `env:"WAYMARK_HISTORY_PAGE_SIZE" envDefault:"50"`
	WarningsCap   int           `env:"WAYMARK_WARNINGS_CAP" envDefault:"25"`
	JSONOutput    bool          `env:"WAYMARK_JSON_OUTPUT"`

	Verb string
	Args []string
}

// ParseConfig reads environment configuration and splits the command
// verb from its arguments.
func ParseConfig(args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join("data", "waymark.db")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.OperatorCommand
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.WarningsCap < 0 {
		cfg.WarningsCap = 0
	}
	if len(args) == 0 {
		return Config{}, errors.New(usage)
	}
	cfg.Verb = args[0]
	cfg.Args = args[1:]
	switch cfg.Verb {
	case "verify", "history", "stats", "replay", "export", "import", "battle":
	default:
		return Config{}, fmt.Errorf("unknown command %q\n%s", cfg.Verb, usage)
	}
	return cfg, nil
}

// closableStore is the full journal store plus its shutdown hook.
type closableStore interface {
	storage.Store
	Close() error
}

// Run executes one operator command against the configured store.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	campaigns, err := template.LoadDir(cfg.CampaignDir)
	if err != nil {
		return err
	}
	keyring, err := optionalKeyring()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	return runWithStore(ctx, cfg, store, campaigns, keyring, out, errOut)
}

// runWithStore contains the command logic with an injectable store. It
// owns the store lifecycle, closing it on return.
func runWithStore(ctx context.Context, cfg Config, store closableStore, campaigns template.Source, keyring *integrity.Keyring, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close store: %v\n", err)
		}
	}()

	j := journal.Journal{Instances: store, Store: store, Keyring: keyring}

	snapshots, closeSnapshots, err := openSnapshotStore(cfg, store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSnapshots(); err != nil {
			fmt.Fprintf(errOut, "Error: close snapshot store: %v\n", err)
		}
	}()

	var results []runResult
	switch cfg.Verb {
	case "verify":
		if len(cfg.Args) == 0 {
			return errors.New("verify requires at least one instance id")
		}
		for _, instanceID := range cfg.Args {
			results = append(results, runVerify(ctx, j, instanceID))
		}
	case "history":
		if len(cfg.Args) == 0 {
			return errors.New("history requires an instance id")
		}
		filterExpr := strings.Join(cfg.Args[1:], " ")
		results = append(results, runHistory(ctx, store, cfg.Args[0], filterExpr, cfg.PageSize))
	case "stats":
		if len(cfg.Args) > 1 {
			return errors.New("stats takes at most a since argument")
		}
		results = append(results, runStats(ctx, store, cfg.Args))
	case "replay":
		if len(cfg.Args) == 0 {
			return errors.New("replay requires at least one instance id")
		}
		for _, instanceID := range cfg.Args {
			results = append(results, runReplay(ctx, store, snapshots, campaigns, instanceID))
		}
	case "export":
		if len(cfg.Args) != 2 {
			return errors.New("export requires an instance id and an archive path")
		}
		results = append(results, runExport(ctx, store, cfg.Args[0], cfg.Args[1]))
	case "import":
		if len(cfg.Args) != 1 {
			return errors.New("import requires an archive path")
		}
		results = append(results, runImport(ctx, store, snapshots, cfg.Args[0]))
	case "battle":
		if len(cfg.Args) < 2 || cfg.Args[0] != "verify" {
			return errors.New("battle supports one subcommand: battle verify <instance-id> [battle-id]")
		}
		battleRef := ""
		if len(cfg.Args) > 2 {
			battleRef = cfg.Args[2]
		}
		results = append(results, runBattleVerify(ctx, j, cfg.Args[1], battleRef))
	default:
		return fmt.Errorf("unknown command %q", cfg.Verb)
	}

	failed := false
	for _, result := range results {
		result.Warnings, result.WarningsTotal = capWarnings(result.Warnings, cfg.WarningsCap)
		if cfg.JSONOutput {
			outputJSON(out, errOut, result)
		} else {
			prefix := ""
			if len(results) > 1 {
				prefix = fmt.Sprintf("[%s] ", result.InstanceID)
			}
			printResult(out, errOut, result, prefix)
		}
		if result.ExitCode != 0 {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("%s failed", cfg.Verb)
	}
	return nil
}

func openStore(cfg Config) (closableStore, error) {
	switch cfg.StorageDriver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		path := filepath.Clean(cfg.SQLitePath)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(path)
	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("WAYMARK_POSTGRES_DSN is required for the postgres driver")
		}
		return postgres.Open(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// openSnapshotStore chooses where replay checkpoints live. With
// WAYMARK_SNAPSHOT_PATH set, snapshots sit in a BoltDB side file that
// can be thrown away independently of the journal; otherwise the main
// store holds them.
func openSnapshotStore(cfg Config, fallback storage.SnapshotStore) (storage.SnapshotStore, func() error, error) {
	path := strings.TrimSpace(cfg.SnapshotPath)
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	side, err := bbolt.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return side, side.Close, nil
}

// Env names shared with the journal's signing configuration.
const (
	envHMACKey  = "WAYMARK_JOURNAL_HMAC_KEY"
	envHMACKeys = "WAYMARK_JOURNAL_HMAC_KEYS"
)

// optionalKeyring loads the signing keyring when one is configured.
// Without keys the hash chain is still verified; only signature checks
// are skipped.
func optionalKeyring() (*integrity.Keyring, error) {
	if strings.TrimSpace(os.Getenv(envHMACKey)) == "" && strings.TrimSpace(os.Getenv(envHMACKeys)) == "" {
		return nil, nil
	}
	return integrity.KeyringFromEnv()
}

type runResult struct {
	InstanceID    string          `json:"instance_id,omitempty"`
	Mode          string          `json:"mode"`
	Report        json.RawMessage `json:"report,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	WarningsTotal int             `json:"warnings_total,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExitCode      int             `json:"-"`
}

type verifyReport struct {
	TailSeq           uint64 `json:"tail_seq"`
	Transactions      int    `json:"transactions"`
	SignaturesChecked bool   `json:"signatures_checked"`
}

type historyEntry struct {
	Seq         uint64    `json:"seq"`
	Kind        string    `json:"kind"`
	HeroID      string    `json:"hero_id,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	CanonicalAt time.Time `json:"canonical_at"`
	ID          string    `json:"id"`
}

type historyReport struct {
	Transactions []historyEntry `json:"transactions"`
	Total        int            `json:"total"`
}

type statsReport struct {
	Since     string `json:"since,omitempty"`
	Instances int64  `json:"instances"`
	Committed int64  `json:"committed"`
	Pending   int64  `json:"pending"`
	Discarded int64  `json:"discarded"`
	Reversals int64  `json:"reversals"`
	Snapshots int64  `json:"snapshots"`
}

type replayReport struct {
	TailSeq         uint64 `json:"tail_seq"`
	SnapshotSeq     uint64 `json:"snapshot_seq,omitempty"`
	SnapshotChecked bool   `json:"snapshot_checked"`
	SnapshotMatch   bool   `json:"snapshot_match"`
}

type archiveReport struct {
	Path        string `json:"path"`
	InstanceID  string `json:"instance_id"`
	CampaignRef string `json:"campaign_ref"`
	HeroID      string `json:"hero_id"`
	TailSeq     uint64 `json:"tail_seq"`
}

type battleVerifyReport struct {
	Battles    int `json:"battles"`
	Verified   int `json:"verified"`
	Unresolved int `json:"unresolved"`
	Corrupted  int `json:"corrupted"`
}

func runVerify(ctx context.Context, j journal.Journal, instanceID string) runResult {
	result := runResult{InstanceID: instanceID, Mode: "verify"}
	log, err := j.LoadLog(ctx, instanceID)
	if err != nil {
		result.Error = fmt.Sprintf("load log: %v", err)
		result.ExitCode = 1
		return result
	}
	if err := integrity.VerifyChain(instanceID, log, j.Keyring); err != nil {
		result.Error = fmt.Sprintf("verify chain: %v", err)
		result.ExitCode = 1
		return result
	}
	var tail uint64
	if len(log) > 0 {
		tail = log[len(log)-1].Seq
	}
	encodeReport(&result, verifyReport{
		TailSeq:           tail,
		Transactions:      len(log),
		SignaturesChecked: j.Keyring != nil,
	})
	return result
}

func runHistory(ctx context.Context, store storage.TransactionStore, instanceID, filterExpr string, pageSize int) runResult {
	result := runResult{InstanceID: instanceID, Mode: "history"}
	cond, err := filter.ParseHistoryFilter(filterExpr)
	if err != nil {
		result.Error = fmt.Sprintf("parse filter: %v", err)
		result.ExitCode = 1
		return result
	}

	report := historyReport{Transactions: []historyEntry{}}
	req := storage.ListTransactionsPageRequest{
		InstanceID:   instanceID,
		PageSize:     pageSize,
		FilterClause: cond.Clause,
		FilterParams: cond.Params,
	}
	for {
		page, err := store.ListTransactionsPage(ctx, req)
		if err != nil {
			result.Error = fmt.Sprintf("list transactions: %v", err)
			result.ExitCode = 1
			return result
		}
		report.Total = page.TotalCount
		for _, tx := range page.Transactions {
			report.Transactions = append(report.Transactions, historyEntry{
				Seq:         tx.Seq,
				Kind:        string(tx.Kind),
				HeroID:      tx.HeroID,
				RequestID:   tx.RequestID,
				CanonicalAt: tx.CanonicalAt,
				ID:          tx.ID,
			})
		}
		if !page.HasNextPage || len(page.Transactions) == 0 {
			break
		}
		req.Cursor = cursor.NextPage(page.Transactions[len(page.Transactions)-1].Seq, false)
	}
	encodeReport(&result, report)
	return result
}

// runStats reports aggregate journal counters, optionally limited to
// activity at or after a cutoff given as a duration back from now
// ("72h") or an RFC 3339 instant.
func runStats(ctx context.Context, store closableStore, args []string) runResult {
	result := runResult{Mode: "stats"}
	var since *time.Time
	var sinceLabel string
	if len(args) == 1 {
		cutoff, err := parseSinceArg(args[0], time.Now().UTC())
		if err != nil {
			result.Error = err.Error()
			result.ExitCode = 1
			return result
		}
		since = &cutoff
		sinceLabel = cutoff.UTC().Format(time.RFC3339)
	}
	stats, err := store.GetJournalStatistics(ctx, since)
	if err != nil {
		result.Error = fmt.Sprintf("journal statistics: %v", err)
		result.ExitCode = 1
		return result
	}
	encodeReport(&result, statsReport{
		Since:     sinceLabel,
		Instances: stats.InstanceCount,
		Committed: stats.CommittedCount,
		Pending:   stats.PendingCount,
		Discarded: stats.DiscardedCount,
		Reversals: stats.ReversalCount,
		Snapshots: stats.SnapshotCount,
	})
	return result
}

// parseSinceArg reads a stats window: a duration back from now or an
// RFC 3339 instant.
func parseSinceArg(arg string, now time.Time) (time.Time, error) {
	arg = strings.TrimSpace(arg)
	if d, err := time.ParseDuration(arg); err == nil {
		if d < 0 {
			return time.Time{}, errors.New("since duration must not be negative")
		}
		return now.Add(-d), nil
	}
	at, err := time.Parse(time.RFC3339, arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be a duration or an RFC 3339 time: %q", arg)
	}
	return at, nil
}

func runReplay(ctx context.Context, store closableStore, snapshots storage.SnapshotStore, campaigns template.Source, instanceID string) runResult {
	result := runResult{InstanceID: instanceID, Mode: "replay"}
	view := stateview.View{Instances: store, Log: store, Campaigns: campaigns}

	tail, err := store.LastCommittedSeq(ctx, instanceID)
	if err != nil {
		result.Error = fmt.Sprintf("committed tail: %v", err)
		result.ExitCode = 1
		return result
	}
	if _, err := view.StateAt(ctx, instanceID, 0); err != nil {
		result.Error = fmt.Sprintf("replay state: %v", err)
		result.ExitCode = 1
		return result
	}
	report := replayReport{TailSeq: tail}

	snap, err := snapshots.GetLatestSnapshot(ctx, instanceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// No snapshot: the full replay above already proved the log folds.
	case err != nil:
		result.Error = fmt.Sprintf("latest snapshot: %v", err)
		result.ExitCode = 1
		return result
	default:
		report.SnapshotSeq = snap.Seq
		report.SnapshotChecked = true
		replayed, err := view.StateAt(ctx, instanceID, snap.Seq)
		if err != nil {
			result.Error = fmt.Sprintf("replay to snapshot seq %d: %v", snap.Seq, err)
			result.ExitCode = 1
			return result
		}
		encoded, err := stateview.EncodeState(replayed)
		if err != nil {
			result.Error = fmt.Sprintf("encode replayed state: %v", err)
			result.ExitCode = 1
			return result
		}
		snapState, err := stateview.DecodeState(snap.StateJSON)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("snapshot at seq %d does not decode: %v", snap.Seq, err))
			result.ExitCode = 1
		} else {
			// Re-encode the stored state so both sides pass through the
			// current struct layout before comparing.
			canonical, err := stateview.EncodeState(snapState)
			if err != nil {
				result.Error = fmt.Sprintf("encode snapshot state: %v", err)
				result.ExitCode = 1
				return result
			}
			report.SnapshotMatch = bytes.Equal(encoded, canonical)
			if !report.SnapshotMatch {
				result.Warnings = append(result.Warnings, fmt.Sprintf("snapshot at seq %d diverges from replayed state", snap.Seq))
				result.ExitCode = 1
			}
		}
	}
	encodeReport(&result, report)
	return result
}

func runExport(ctx context.Context, store closableStore, instanceID, path string) runResult {
	result := runResult{InstanceID: instanceID, Mode: "export"}
	meta, err := archive.ExportFile(ctx, store, instanceID, path)
	if err != nil {
		result.Error = fmt.Sprintf("export archive: %v", err)
		result.ExitCode = 1
		return result
	}
	encodeReport(&result, archiveReport{
		Path:        path,
		InstanceID:  meta.InstanceID,
		CampaignRef: meta.CampaignRef,
		HeroID:      meta.HeroID,
		TailSeq:     meta.TailSeq,
	})
	return result
}

func runImport(ctx context.Context, store closableStore, snapshots storage.SnapshotStore, path string) runResult {
	result := runResult{Mode: "import"}
	meta, err := archive.ImportFile(ctx, store, path)
	if err != nil {
		result.Error = fmt.Sprintf("import archive: %v", err)
		result.ExitCode = 1
		return result
	}
	result.InstanceID = meta.InstanceID
	// Snapshots from a prior life of this instance id would shadow the
	// restored log.
	cache := stateview.SnapshotCache{Snapshots: snapshots}
	if err := cache.Invalidate(ctx, meta.InstanceID); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("invalidate snapshots: %v", err))
	}
	encodeReport(&result, archiveReport{
		Path:        path,
		InstanceID:  meta.InstanceID,
		CampaignRef: meta.CampaignRef,
		HeroID:      meta.HeroID,
		TailSeq:     meta.TailSeq,
	})
	return result
}

func runBattleVerify(ctx context.Context, j journal.Journal, instanceID, battleRef string) runResult {
	result := runResult{InstanceID: instanceID, Mode: "battle-verify"}
	log, err := j.LoadLog(ctx, instanceID)
	if err != nil {
		result.Error = fmt.Sprintf("load log: %v", err)
		result.ExitCode = 1
		return result
	}

	type battleLog struct {
		started transaction.BattleStarted
		turns   []transaction.BattleTurn
		ended   *transaction.BattleEnded
	}
	var order []string
	battles := map[string]*battleLog{}
	for _, tx := range log {
		switch tx.Kind {
		case transaction.KindBattleStarted:
			started, err := transaction.DecodeBattleStarted(tx.Attrs)
			if err != nil {
				result.Error = fmt.Sprintf("decode %s at seq %d: %v", tx.Kind, tx.Seq, err)
				result.ExitCode = 1
				return result
			}
			if _, ok := battles[started.BattleID]; !ok {
				order = append(order, started.BattleID)
			}
			battles[started.BattleID] = &battleLog{started: started}
		case transaction.KindBattleTurn:
			turn, err := transaction.DecodeBattleTurn(tx.Attrs)
			if err != nil {
				result.Error = fmt.Sprintf("decode %s at seq %d: %v", tx.Kind, tx.Seq, err)
				result.ExitCode = 1
				return result
			}
			entry := battles[turn.BattleID]
			if entry == nil {
				result.Error = fmt.Sprintf("%s at seq %d references unknown battle %s", tx.Kind, tx.Seq, turn.BattleID)
				result.ExitCode = 1
				return result
			}
			entry.turns = append(entry.turns, turn)
		case transaction.KindBattleEnded:
			ended, err := transaction.DecodeBattleEnded(tx.Attrs)
			if err != nil {
				result.Error = fmt.Sprintf("decode %s at seq %d: %v", tx.Kind, tx.Seq, err)
				result.ExitCode = 1
				return result
			}
			entry := battles[ended.BattleID]
			if entry == nil {
				result.Error = fmt.Sprintf("%s at seq %d references unknown battle %s", tx.Kind, tx.Seq, ended.BattleID)
				result.ExitCode = 1
				return result
			}
			entry.ended = &ended
		}
	}

	report := battleVerifyReport{}
	for _, ref := range order {
		if battleRef != "" && ref != battleRef {
			continue
		}
		entry := battles[ref]
		report.Battles++
		b, err := battle.Reconstruct(entry.started, entry.turns)
		if err != nil {
			report.Corrupted++
			result.Warnings = append(result.Warnings, fmt.Sprintf("battle %s: %v", ref, err))
			continue
		}
		if entry.ended == nil {
			report.Unresolved++
			continue
		}
		if err := battle.VerifyEnded(b, *entry.ended); err != nil {
			report.Corrupted++
			result.Warnings = append(result.Warnings, fmt.Sprintf("battle %s: %v", ref, err))
			continue
		}
		report.Verified++
	}
	if battleRef != "" && report.Battles == 0 {
		result.Error = fmt.Sprintf("battle %s not found in instance %s", battleRef, instanceID)
		result.ExitCode = 1
		return result
	}
	if report.Corrupted > 0 {
		result.ExitCode = 1
	}
	encodeReport(&result, report)
	return result
}

func encodeReport(result *runResult, report any) {
	payload, err := json.Marshal(report)
	if err != nil {
		result.Error = fmt.Sprintf("encode report: %v", err)
		result.ExitCode = 1
		return
	}
	result.Report = payload
}

func capWarnings(warnings []string, limit int) ([]string, int) {
	total := len(warnings)
	if limit == 0 || total <= limit {
		return warnings, total
	}
	return warnings[:limit], total
}

func outputJSON(out io.Writer, errOut io.Writer, result runResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(encoded))
}

func printResult(out io.Writer, errOut io.Writer, result runResult, prefix string) {
	if result.Error != "" {
		fmt.Fprintf(errOut, "%sError: %s\n", prefix, result.Error)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(errOut, "%sWarning: %s\n", prefix, warning)
	}
	if result.WarningsTotal > len(result.Warnings) {
		fmt.Fprintf(errOut, "%sWarning: %d more warnings suppressed\n", prefix, result.WarningsTotal-len(result.Warnings))
	}
	if len(result.Report) == 0 {
		return
	}

	switch result.Mode {
	case "verify":
		var report verifyReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		signatures := "skipped"
		if report.SignaturesChecked {
			signatures = "checked"
		}
		fmt.Fprintf(out, "%sVerified chain for instance %s through seq %d (%d transactions, signatures %s)\n",
			prefix, result.InstanceID, report.TailSeq, report.Transactions, signatures)
	case "history":
		var report historyReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		for _, entry := range report.Transactions {
			line := fmt.Sprintf("%s%6d  %-26s  %s  %s", prefix, entry.Seq, entry.Kind, entry.CanonicalAt.Format(time.RFC3339), entry.ID)
			if entry.HeroID != "" {
				line += "  hero=" + entry.HeroID
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "%sListed %d of %d committed transactions for instance %s\n",
			prefix, len(report.Transactions), report.Total, result.InstanceID)
	case "stats":
		var report statsReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		window := "all time"
		if report.Since != "" {
			window = "since " + report.Since
		}
		fmt.Fprintf(out, "%sJournal counters (%s): %d instances, %d committed (%d reversals), %d pending, %d discarded, %d snapshots\n",
			prefix, window, report.Instances, report.Committed, report.Reversals, report.Pending, report.Discarded, report.Snapshots)
	case "replay":
		var report replayReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		switch {
		case !report.SnapshotChecked:
			fmt.Fprintf(out, "%sReplayed instance %s through seq %d (no snapshot to compare)\n",
				prefix, result.InstanceID, report.TailSeq)
		case report.SnapshotMatch:
			fmt.Fprintf(out, "%sReplayed instance %s through seq %d (snapshot at seq %d matches)\n",
				prefix, result.InstanceID, report.TailSeq, report.SnapshotSeq)
		default:
			fmt.Fprintf(out, "%sReplayed instance %s through seq %d (snapshot at seq %d DIVERGES)\n",
				prefix, result.InstanceID, report.TailSeq, report.SnapshotSeq)
		}
	case "export", "import":
		var report archiveReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		if result.Mode == "export" {
			fmt.Fprintf(out, "%sExported instance %s through seq %d to %s\n",
				prefix, report.InstanceID, report.TailSeq, report.Path)
			return
		}
		fmt.Fprintf(out, "%sImported instance %s through seq %d from %s\n",
			prefix, report.InstanceID, report.TailSeq, report.Path)
	case "battle-verify":
		var report battleVerifyReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sVerified %d of %d battles for instance %s (%d unresolved, %d corrupted)\n",
			prefix, report.Verified, report.Battles, result.InstanceID, report.Unresolved, report.Corrupted)
	}
}
