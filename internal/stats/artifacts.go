package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"healthfuzz/internal/evo"
	"healthfuzz/internal/model"
)

const runIndexFile = "run_index.json"

const (
	configFile      = "config.json"
	historyFile     = "fitness_history.json"
	seriesFile      = "fitness_series.csv"
	topFile         = "top_individuals.json"
	lineageFile     = "lineage.json"
	diagnosticsFile = "generation_diagnostics.json"
	convergenceFile = "convergence.json"
)

var artifactFiles = []string{configFile, historyFile, seriesFile, topFile, lineageFile, diagnosticsFile, convergenceFile}

type RunConfig struct {
	RunID                   string  `json:"run_id"`
	Scape                   string  `json:"scape"`
	Sense                   string  `json:"sense"`
	RuleCount               int     `json:"rule_count"`
	Target                  float64 `json:"target"`
	Population              int     `json:"population"`
	Offspring               int     `json:"offspring"`
	Generations             int     `json:"generations"`
	Seed                    uint64  `json:"seed"`
	Workers                 int     `json:"workers"`
	Selection               string  `json:"selection"`
	Crossover               string  `json:"crossover"`
	Mutation                string  `json:"mutation"`
	TournamentSize          int     `json:"tournament_size"`
	CrossoverProbability    float64 `json:"crossover_probability"`
	MutationProbability     float64 `json:"mutation_probability"`
	GeneMutationProbability float64 `json:"gene_mutation_probability"`
	MutationSigma           float64 `json:"mutation_sigma"`
	CacheSize               int     `json:"cache_size"`
	EliteCount              int     `json:"elite_count"`
	SwapProbability         float64 `json:"swap_probability"`
	TuneAttempts            int     `json:"tune_attempts"`
	TunePolicy              string  `json:"tune_policy,omitempty"`
	TunePolicyParam         float64 `json:"tune_policy_param,omitempty"`
	TuneCandidateSelection  string  `json:"tune_candidate_selection,omitempty"`
}

type RunArtifacts struct {
	Config                RunConfig
	BestByGeneration      []float64
	FinalBestFitness      float64
	FinalBestOutput       float64
	FinalBestFallback     bool
	BestWeights           []float64
	TopIndividuals        []model.TopIndividualRecord
	Lineage               []model.LineageRecord
	GenerationDiagnostics []model.GenerationDiagnostics
}

// Convergence condenses a best-by-generation series. Improvement is positive
// when the run moved in the direction of its sense.
type Convergence struct {
	RunID       string  `json:"run_id"`
	Sense       string  `json:"sense"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMin     float64 `json:"best_min"`
	BestMax     float64 `json:"best_max"`
	Improvement float64 `json:"improvement"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Scape            string  `json:"scape"`
	Sense            string  `json:"sense"`
	Population       int     `json:"population"`
	Generations      int     `json:"generations"`
	Seed             uint64  `json:"seed"`
	Workers          int     `json:"workers"`
	TuningEnabled    bool    `json:"tuning_enabled"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	FinalBestOutput  float64 `json:"final_best_output"`
	FinalFallback    bool    `json:"final_best_fallback,omitempty"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func Summarize(runID, sense string, bestByGeneration []float64) (Convergence, error) {
	if len(bestByGeneration) == 0 {
		return Convergence{}, errors.New("fitness series is empty")
	}
	s, err := evo.ParseSense(sense)
	if err != nil {
		return Convergence{}, err
	}
	mean, std := stat.MeanStdDev(bestByGeneration, nil)
	if len(bestByGeneration) == 1 {
		std = 0
	}
	initial := bestByGeneration[0]
	final := bestByGeneration[len(bestByGeneration)-1]
	improvement := initial - final
	if s == evo.Maximize {
		improvement = final - initial
	}
	return Convergence{
		RunID:       runID,
		Sense:       s.String(),
		InitialBest: initial,
		FinalBest:   final,
		BestMean:    mean,
		BestStd:     std,
		BestMin:     floats.Min(bestByGeneration),
		BestMax:     floats.Max(bestByGeneration),
		Improvement: improvement,
	}, nil
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	convergence, err := Summarize(artifacts.Config.RunID, artifacts.Config.Sense, artifacts.BestByGeneration)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", artifacts.Config.RunID, err)
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), map[string]any{
		"best_by_generation":  artifacts.BestByGeneration,
		"final_best_fitness":  artifacts.FinalBestFitness,
		"final_best_output":   artifacts.FinalBestOutput,
		"final_best_fallback": artifacts.FinalBestFallback,
		"best_weights":        artifacts.BestWeights,
	}); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topFile), artifacts.TopIndividuals); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), artifacts.Lineage); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, convergenceFile), convergence); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range artifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadConvergence(baseDir, runID string) (Convergence, bool, error) {
	var c Convergence
	ok, err := readJSON(filepath.Join(baseDir, runID, convergenceFile), &c)
	return c, ok, err
}

func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	path := filepath.Join(runDir, seriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, seriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
