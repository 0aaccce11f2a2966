package model

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/example/go-ronlp/internal/onnx"
	"github.com/tidwall/gjson"
)

// ExportOptions configures an ONNX export of a known model repository.
type ExportOptions struct {
	Repo      string
	OutDir    string
	PythonBin string
	Opset     int // 0 keeps the exporter default
	HFToken   string
	Stdout    io.Writer
	Stderr    io.Writer
}

// exportLayout names the exporter task of a repository and the graphs it
// produces.
type exportLayout struct {
	task       string
	needsVocab bool
	graphs     func(dims modelDims) []onnx.ManifestGraph
}

type modelDims struct {
	hidden int
	vocab  int
}

var exportLayouts = map[string]exportLayout{
	DiacriticsRepo: {task: "text2text-generation", needsVocab: true, graphs: seq2seqGraphs},
	EmbedderRepo:   {task: "feature-extraction", graphs: encoderGraphs},
}

var (
	runExporter       = runExporterImpl
	checkExportTools  = validateExportTooling
	exportPythonProbe = detectExportPython
)

// ExportRepos returns the repositories Export knows how to lay out, sorted.
func ExportRepos() []string {
	repos := make([]string, 0, len(exportLayouts))
	for r := range exportLayouts {
		repos = append(repos, r)
	}
	sort.Strings(repos)

	return repos
}

// Export converts a Hugging Face checkpoint to ONNX with the optimum
// exporter, then writes manifest.json describing the produced graphs under
// the names the pipelines load.
func Export(opts ExportOptions) error {
	if opts.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if opts.OutDir == "" {
		return fmt.Errorf("out dir is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	layout, ok := exportLayouts[opts.Repo]
	if !ok {
		return fmt.Errorf("no export layout for repo %q (known: %v)", opts.Repo, ExportRepos())
	}

	pythonBin := opts.PythonBin
	if pythonBin == "" {
		pythonBin = exportPythonProbe()
	}
	if err := checkExportTools(pythonBin); err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	args := []string{"-m", "optimum.exporters.onnx", "--model", opts.Repo, "--task", layout.task}
	if opts.Opset > 0 {
		args = append(args, "--opset", strconv.Itoa(opts.Opset))
	}
	args = append(args, opts.OutDir)

	var env []string
	if opts.HFToken != "" {
		env = append(env, "HF_TOKEN="+opts.HFToken)
	}

	_, _ = fmt.Fprintf(opts.Stdout, "exporting %s (%s) into %s\n", opts.Repo, layout.task, opts.OutDir)
	if err := runExporter(pythonBin, args, env, opts.Stdout, opts.Stderr); err != nil {
		return fmt.Errorf("run ONNX exporter: %w", err)
	}

	graphs, err := exportManifest(opts.OutDir, layout)
	if err != nil {
		return err
	}
	if err := onnx.WriteManifest(opts.OutDir, graphs); err != nil {
		return err
	}
	if _, err := onnx.NewSessionManager(onnx.ManifestPath(opts.OutDir)); err != nil {
		return fmt.Errorf("verify exported manifest: %w", err)
	}

	_, _ = fmt.Fprintf(opts.Stdout, "wrote %s with %d graphs\n", onnx.ManifestPath(opts.OutDir), len(graphs))

	return nil
}

// exportManifest reads the model dimensions from the exported config.json
// and checks that every graph file of the layout exists.
func exportManifest(dir string, layout exportLayout) ([]onnx.ManifestGraph, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("read exported config: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("exported config.json is not valid JSON")
	}

	dims := modelDims{
		hidden: int(gjson.GetBytes(data, "d_model").Int()),
		vocab:  int(gjson.GetBytes(data, "vocab_size").Int()),
	}
	if dims.hidden == 0 {
		dims.hidden = int(gjson.GetBytes(data, "hidden_size").Int())
	}
	if dims.hidden <= 0 {
		return nil, fmt.Errorf("exported config.json has no d_model or hidden_size")
	}
	if layout.needsVocab && dims.vocab <= 0 {
		return nil, fmt.Errorf("exported config.json has no vocab_size")
	}

	graphs := layout.graphs(dims)
	for _, g := range graphs {
		if _, err := os.Stat(filepath.Join(dir, g.Filename)); err != nil {
			return nil, fmt.Errorf("exported graph %q: %w", g.Name, err)
		}
	}

	return graphs, nil
}

func int64Input(name string, shape ...any) onnx.NodeInfo {
	return onnx.NodeInfo{Name: name, DType: "int64", Shape: shape}
}

func floatNode(name string, shape ...any) onnx.NodeInfo {
	return onnx.NodeInfo{Name: name, DType: "float32", Shape: shape}
}

func seq2seqGraphs(d modelDims) []onnx.ManifestGraph {
	return []onnx.ManifestGraph{
		{
			Name:     onnx.GraphEncoder,
			Filename: "encoder_model.onnx",
			Inputs: []onnx.NodeInfo{
				int64Input("input_ids", "batch_size", "encoder_sequence_length"),
				int64Input("attention_mask", "batch_size", "encoder_sequence_length"),
			},
			Outputs: []onnx.NodeInfo{
				floatNode("last_hidden_state", "batch_size", "encoder_sequence_length", d.hidden),
			},
		},
		{
			Name:     onnx.GraphDecoder,
			Filename: "decoder_model.onnx",
			Inputs: []onnx.NodeInfo{
				int64Input("encoder_attention_mask", "batch_size", "encoder_sequence_length"),
				int64Input("input_ids", "batch_size", "decoder_sequence_length"),
				floatNode("encoder_hidden_states", "batch_size", "encoder_sequence_length", d.hidden),
			},
			Outputs: []onnx.NodeInfo{
				floatNode("logits", "batch_size", "decoder_sequence_length", d.vocab),
			},
		},
	}
}

func encoderGraphs(d modelDims) []onnx.ManifestGraph {
	return []onnx.ManifestGraph{{
		Name:     onnx.GraphEncoder,
		Filename: "model.onnx",
		Inputs: []onnx.NodeInfo{
			int64Input("input_ids", "batch_size", "sequence_length"),
			int64Input("attention_mask", "batch_size", "sequence_length"),
			int64Input("token_type_ids", "batch_size", "sequence_length"),
		},
		Outputs: []onnx.NodeInfo{
			floatNode("last_hidden_state", "batch_size", "sequence_length", d.hidden),
		},
	}}
}

func runExporterImpl(pythonBin string, args, env []string, stdout, stderr io.Writer) error {
	cmd := exec.Command(pythonBin, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	return cmd.Run()
}

func validateExportTooling(pythonBin string) error {
	if _, err := exec.LookPath(pythonBin); err != nil {
		return fmt.Errorf("python interpreter %q not found: %w", pythonBin, err)
	}

	check := exec.Command(pythonBin, "-c", "import optimum.exporters.onnx, torch, transformers")
	check.Stdout = io.Discard
	check.Stderr = os.Stderr
	if err := check.Run(); err != nil {
		return fmt.Errorf("python tooling dependencies missing for export (need optimum[exporters], torch, transformers): %w", err)
	}

	return nil
}
