// Package dataset 读写装箱实例：FSU 目录、OR-Library 文本、JSON，以及合成基准生成器。
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wyfcoding/binpack/algorithm/binpacking"
	"github.com/wyfcoding/binpack/xerrors"
)

// ErrNoProblems 文件中没有任何实例。
var ErrNoProblems = errors.New("no problems found")

// Problem 一个实例及其已知最优箱数（未知时为 0）。
type Problem struct {
	Instance *binpacking.Instance `json:"instance"`
	Optimal  int                  `json:"optimal,omitempty"`
}

// FromSizes 把逐件尺寸列表按相同尺寸合并为物品种类，ID 按首次出现顺序从 1 开始。
func FromSizes(name string, capacity float64, sizes []float64) *binpacking.Instance {
	inst := &binpacking.Instance{Name: name, Capacity: capacity}
	index := make(map[float64]int)
	for _, s := range sizes {
		if i, ok := index[s]; ok {
			inst.Items[i].Demand++
			continue
		}
		index[s] = len(inst.Items)
		inst.Items = append(inst.Items, binpacking.ItemType{ID: len(inst.Items) + 1, Size: s, Demand: 1})
	}
	return inst
}

// LoadFSU 读取 FSU 目录：*_c.txt 为容量，*_w.txt 为逐件重量，*_s.txt（可选）为最优分配。
func LoadFSU(dir string) (*Problem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
	}

	var cFile, wFile, sFile string
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, "_c.txt") && cFile == "":
			cFile = name
		case strings.HasSuffix(name, "_w.txt") && wFile == "":
			wFile = name
		case strings.HasSuffix(name, "_s.txt") && sFile == "":
			sFile = name
		}
	}
	if cFile == "" || wFile == "" {
		return nil, fmt.Errorf("%w: %s is missing *_c.txt or *_w.txt", xerrors.ErrDatasetFormat, dir)
	}

	caps, err := readFloats(filepath.Join(dir, cFile))
	if err != nil {
		return nil, err
	}
	if len(caps) != 1 {
		return nil, fmt.Errorf("%w: %s holds %d values, want 1", xerrors.ErrDatasetFormat, cFile, len(caps))
	}
	weights, err := readFloats(filepath.Join(dir, wFile))
	if err != nil {
		return nil, err
	}

	p := &Problem{Instance: FromSizes(filepath.Base(dir), caps[0], weights)}
	if sFile != "" {
		assign, err := readFloats(filepath.Join(dir, sFile))
		if err != nil {
			return nil, err
		}
		p.Optimal = distinct(assign)
	}
	return p, nil
}

func distinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}

func readFloats(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
	}
	fields := strings.Fields(string(data))
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", xerrors.ErrDatasetFormat, filepath.Base(path), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadORLib 读取 OR-Library 格式：问题数，随后每个问题为
// 名称、容量、件数、最优箱数，再跟逐件尺寸，全部以空白分隔。
func ReadORLib(r io.Reader) ([]*Problem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
			}
			return "", fmt.Errorf("%w: unexpected end of input reading %s", xerrors.ErrDatasetFormat, what)
		}
		return sc.Text(), nil
	}
	nextInt := func(what string) (int, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %s %q", xerrors.ErrDatasetFormat, what, tok)
		}
		return n, nil
	}
	nextFloat := func(what string) (float64, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q", xerrors.ErrDatasetFormat, what, tok)
		}
		return v, nil
	}

	count, err := nextInt("problem count")
	if err != nil {
		return nil, err
	}

	// 计数来自输入本身，只按已读到的数据增长切片。
	var problems []*Problem
	for range count {
		name, err := next("problem name")
		if err != nil {
			return nil, err
		}
		capacity, err := nextFloat("capacity")
		if err != nil {
			return nil, err
		}
		n, err := nextInt("item count")
		if err != nil {
			return nil, err
		}
		optimal, err := nextInt("optimal bins")
		if err != nil {
			return nil, err
		}
		if n > binpacking.MaxTotalItems {
			return nil, fmt.Errorf("%w: %s item count %d exceeds %d", xerrors.ErrDatasetFormat, name, n, binpacking.MaxTotalItems)
		}
		var sizes []float64
		for range n {
			size, err := nextFloat("item size")
			if err != nil {
				return nil, err
			}
			sizes = append(sizes, size)
		}
		problems = append(problems, &Problem{Instance: FromSizes(name, capacity, sizes), Optimal: optimal})
	}
	return problems, nil
}

// ReadJSON 读取单个实例对象或实例数组。
func ReadJSON(r io.Reader) ([]*binpacking.Instance, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", xerrors.ErrDatasetFormat)
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []*binpacking.Instance
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
		}
		return list, nil
	}

	var one binpacking.Instance
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
	}
	return []*binpacking.Instance{&one}, nil
}

// WriteJSON 以缩进 JSON 写出任意值。
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Load 按路径类型加载：目录视为 FSU，.json 为 JSON，其余按 OR-Library 文本读取。
func Load(path string) ([]*Problem, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
	}
	if fi.IsDir() {
		p, err := LoadFSU(path)
		if err != nil {
			return nil, err
		}
		return []*Problem{p}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrDatasetFormat, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		insts, err := ReadJSON(f)
		if err != nil {
			return nil, err
		}
		out := make([]*Problem, len(insts))
		for i, inst := range insts {
			if inst.Name == "" {
				inst.Name = fmt.Sprintf("%s#%d", filepath.Base(path), i)
			}
			out[i] = &Problem{Instance: inst}
		}
		return out, nil
	}
	problems, err := ReadORLib(f)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProblems, path)
	}
	return problems, nil
}
