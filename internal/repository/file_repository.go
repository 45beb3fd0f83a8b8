package repository

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/ini.v1"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/grouping"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/pgpierr"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
)

const (
	dirTables         = "tables"
	dirTablesQuery    = "query"
	dirTablesPlan     = "plan"
	dirTablesPlanJSON = "plan_json"
	dirGrouping       = "grouping"
	dirRegression     = "regression"
	dirRegParams      = "reg_params"

	statFile  = "stat.dat"
	logCSVile = "log.csv"

	dirMode = 0o770
	fileMode = 0o640
)

type paramKey struct {
	serverID string
	queryID  int64
	planID   int64
}

// FileRepository is the C9 Repository contract backed by a hashed
// directory tree under baseDir, one subtree per serverId (spec §6).
type FileRepository struct {
	baseDir     string
	paramCache  *lru.Cache[paramKey, *regression.ParamTree]
	groupCache  *lru.Cache[paramKey, grouping.Node]
}

// NewFileRepository opens a repository rooted at baseDir. cacheSize
// bounds the in-memory LRU of parsed regression/grouping trees; 0
// selects a reasonable default.
func NewFileRepository(baseDir string, cacheSize int) (*FileRepository, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	params, err := lru.New[paramKey, *regression.ParamTree](cacheSize)
	if err != nil {
		return nil, err
	}
	groups, err := lru.New[paramKey, grouping.Node](cacheSize)
	if err != nil {
		return nil, err
	}
	return &FileRepository{baseDir: baseDir, paramCache: params, groupCache: groups}, nil
}

// BaseDir returns the repository's root directory, for callers (the CLI's
// create/rename/delete commands) that manage whole server subtrees rather
// than individual records.
func (r *FileRepository) BaseDir() string {
	return r.baseDir
}

func (r *FileRepository) serverDir(serverID string) string {
	return filepath.Join(r.baseDir, serverID)
}

func key(queryID, planID int64) string {
	return fmt.Sprintf("%d.%d", queryID, planID)
}

func (r *FileRepository) regressionParamPath(serverID string, queryID, planID int64) string {
	return filepath.Join(r.serverDir(serverID), dirRegression, planmodel.HashDir(planID), key(queryID, planID))
}

func (r *FileRepository) groupingPath(serverID string, queryID, planID int64) string {
	return filepath.Join(r.serverDir(serverID), dirGrouping, planmodel.HashDir(planID), key(queryID, planID))
}

// FormattedParamsPath is the push-format text file a formatted parameter
// set for queryID is written to (spec §4.10), one per server directory.
func (r *FileRepository) FormattedParamsPath(serverID string, queryID int64) string {
	return filepath.Join(r.serverDir(serverID), dirRegParams, strconv.FormatInt(queryID, 10))
}

func (r *FileRepository) queryTextDir(serverID string, queryID int64) string {
	return filepath.Join(r.serverDir(serverID), dirTables, dirTablesQuery, planmodel.HashDir(queryID), strconv.FormatInt(queryID, 10))
}

func (r *FileRepository) planTextDir(serverID string, queryID, planID int64) string {
	return filepath.Join(r.serverDir(serverID), dirTables, dirTablesPlan, planmodel.HashDir(planID), key(queryID, planID))
}

func (r *FileRepository) planJSONDir(serverID string, queryID, planID int64) string {
	return filepath.Join(r.serverDir(serverID), dirTables, dirTablesPlanJSON, planmodel.HashDir(planID), key(queryID, planID))
}

func (r *FileRepository) logCSVPath(serverID string) string {
	return filepath.Join(r.serverDir(serverID), dirTables, logCSVile)
}

func (r *FileRepository) statPath(serverID, tier string) string {
	return filepath.Join(r.serverDir(serverID), tier, statFile)
}

// RegressionParams implements Repository.
func (r *FileRepository) RegressionParams(serverID string, queryID, planID int64) (*regression.ParamTree, bool, error) {
	k := paramKey{serverID, queryID, planID}
	if cached, ok := r.paramCache.Get(k); ok {
		return cached, true, nil
	}
	data, err := os.ReadFile(r.regressionParamPath(serverID, queryID, planID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading regression params: %w", err)
	}
	var tree regression.ParamTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false, pgpierr.Wrap(pgpierr.PlanShapeMismatch, "decoding regression params", err)
	}
	r.paramCache.Add(k, &tree)
	return &tree, true, nil
}

// SaveRegressionParams implements Repository.
func (r *FileRepository) SaveRegressionParams(serverID string, queryID, planID int64, tree *regression.ParamTree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	path := r.regressionParamPath(serverID, queryID, planID)
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	r.paramCache.Add(paramKey{serverID, queryID, planID}, tree)
	return nil
}

// GroupingSample implements Repository.
func (r *FileRepository) GroupingSample(serverID string, queryID, planID int64) (grouping.Node, error) {
	k := paramKey{serverID, queryID, planID}
	if cached, ok := r.groupCache.Get(k); ok {
		return cached, nil
	}
	data, err := os.ReadFile(r.groupingPath(serverID, queryID, planID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading grouped sample: %w", err)
	}
	var node grouping.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, pgpierr.Wrap(pgpierr.PlanShapeMismatch, "decoding grouped sample", err)
	}
	r.groupCache.Add(k, node)
	return node, nil
}

// SaveGroupingSample implements Repository.
func (r *FileRepository) SaveGroupingSample(serverID string, queryID, planID int64, sample grouping.Node) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	path := r.groupingPath(serverID, queryID, planID)
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	r.groupCache.Add(paramKey{serverID, queryID, planID}, sample)
	return nil
}

// AppendLogRow implements Repository: appends one row to log.csv and
// writes its query/plan/plan_json text bodies under the hashed dirs.
func (r *FileRepository) AppendLogRow(serverID string, row LogRow) error {
	if err := appendCSVRow(r.logCSVPath(serverID), []string{
		strconv.FormatInt(row.SeqID, 10),
		row.StartTime.Format("2006-01-02 15:04:05.000"),
		row.EndTime.Format("2006-01-02 15:04:05.000"),
		row.Database,
		strconv.FormatInt(int64(row.PID), 10),
		strconv.Itoa(row.NestedLevel),
		strconv.FormatInt(row.QueryID, 10),
		strconv.FormatInt(row.PlanID, 10),
	}); err != nil {
		return err
	}

	if err := storeSeqFile(r.queryTextDir(serverID, row.QueryID), row.SeqID, row.Query); err != nil {
		return err
	}
	if err := storeSeqFile(r.planTextDir(serverID, row.QueryID, row.PlanID), row.SeqID, row.Plan); err != nil {
		return err
	}
	return storeSeqFile(r.planJSONDir(serverID, row.QueryID, row.PlanID), row.SeqID, row.PlanJSON)
}

// LoadQueryAndPlanText returns the most recently logged query text and
// plan text for one (queryID, planID) pair, the disk-backed equivalent
// of what the interactive viewer's "get" screen shows.
func (r *FileRepository) LoadQueryAndPlanText(serverID string, queryID, planID int64) (query, plan string, err error) {
	query, err = loadLatestSeqFile(r.queryTextDir(serverID, queryID))
	if err != nil {
		return "", "", fmt.Errorf("loading query text: %w", err)
	}
	plan, err = loadLatestSeqFile(r.planTextDir(serverID, queryID, planID))
	if err != nil {
		return "", "", fmt.Errorf("loading plan text: %w", err)
	}
	return query, plan, nil
}

func loadLatestSeqFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", pgpierr.New(pgpierr.PlanMissing, "no rows stored under "+dir)
		}
		return "", err
	}
	var latest int64 = -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		seq, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if seq > latest {
			latest = seq
		}
	}
	if latest < 0 {
		return "", pgpierr.New(pgpierr.PlanMissing, "no rows stored under "+dir)
	}
	data, err := os.ReadFile(filepath.Join(dir, strconv.FormatInt(latest, 10)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func storeSeqFile(dir string, seqID int64, data string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}
	path := filepath.Join(dir, strconv.FormatInt(seqID, 10))
	return os.WriteFile(path, []byte(data), fileMode)
}

func appendCSVRow(path string, fields []string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	return w.Write(fields)
}

// Watermark implements Repository: reads the seqid watermark for tier
// ("tables"/"grouping"/"regression"), defaulting to 0 when the stat file
// does not exist yet.
func (r *FileRepository) Watermark(serverID, tier string) (int64, error) {
	path := r.statPath(serverID, tier)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return 0, pgpierr.Wrap(pgpierr.ConfigInvalid, "reading watermark file", err)
	}
	return cfg.Section(serverID).Key("seqid").MustInt64(0), nil
}

// SetWatermark implements Repository: commits a new seqid watermark via
// a temp-file-then-rename barrier so a reader never observes a
// partially-written stat file.
func (r *FileRepository) SetWatermark(serverID, tier string, seqID int64) error {
	cfg := ini.Empty()
	cfg.Section(serverID).Key("seqid").SetValue(strconv.FormatInt(seqID, 10))

	path := r.statPath(serverID, tier)
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := cfg.SaveTo(tmp); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ Repository = (*FileRepository)(nil)
