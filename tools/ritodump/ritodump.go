package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/ritofmt/config"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/rito/anm"
	"github.com/mogaika/ritofmt/rito/blnd"
	_ "github.com/mogaika/ritofmt/rito/mapgeo"
	"github.com/mogaika/ritofmt/rito/skl"
	_ "github.com/mogaika/ritofmt/rito/skn"
	"github.com/mogaika/ritofmt/utils"
)

// skeletonCache keeps recently bound skeletons decoded, keyed by file path.
type skeletonCache struct {
	root  string
	cache *lru.Cache[string, *skl.Skeleton]
}

func newSkeletonCache(root string, size int) (*skeletonCache, error) {
	c, err := lru.New[string, *skl.Skeleton](size)
	if err != nil {
		return nil, errors.Wrap(err, "skeleton cache")
	}
	return &skeletonCache{root: root, cache: c}, nil
}

func (sc *skeletonCache) load(path string) (*skl.Skeleton, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(sc.root, filepath.FromSlash(path))
	}
	if s, ok := sc.cache.Get(path); ok {
		return s, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open skeleton %s", path)
	}
	defer f.Close()
	s, err := skl.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "skeleton %s", path)
	}
	sc.cache.Add(path, s)
	return s, nil
}

// byID finds a skeleton among paths whose id matches, for animations that
// only carry a skeleton id.
func (sc *skeletonCache) byID(id uint32, paths []string) (*skl.Skeleton, error) {
	for _, p := range paths {
		s, err := sc.load(p)
		if err != nil {
			return nil, err
		}
		if s.SkeletonID == id {
			return s, nil
		}
	}
	return nil, nil
}

func bindHashes(w io.Writer, s *skl.Skeleton, what string, hashes []uint32) {
	names := s.HashNames()
	bound := 0
	fmt.Fprintf(w, "# %s bound to skeleton %q\n", what, s.Name)
	for _, h := range hashes {
		name, ok := names[h]
		if ok {
			bound++
		} else {
			name = "<unbound>"
		}
		fmt.Fprintf(w, "#   %.8x %s\n", h, name)
	}
	fmt.Fprintf(w, "# %d of %d joints bound\n", bound, len(hashes))
}

type dumper struct {
	cfg       config.Config
	skeletons *skeletonCache
	out       io.Writer
}

func (d *dumper) write(path string, f rito.Format, asset interface{}) error {
	fmt.Fprintf(d.out, "# %s: %v\n", path, f)
	switch d.cfg.Output {
	case config.OUTPUT_YAML:
		enc := yaml.NewEncoder(d.out)
		enc.SetIndent(2)
		if err := enc.Encode(asset); err != nil {
			return errors.Wrap(err, "yaml")
		}
		return enc.Close()
	default:
		utils.FDump(d.out, asset)
	}
	return nil
}

func (d *dumper) bind(asset interface{}) error {
	switch a := asset.(type) {
	case *anm.Animation:
		s, err := d.skeletons.byID(a.SkeletonID, d.cfg.Skeletons)
		if err != nil || s == nil {
			return err
		}
		hashes := make([]uint32, len(a.Tracks))
		for i := range a.Tracks {
			hashes[i] = a.Tracks[i].JointHash
		}
		bindHashes(d.out, s, "tracks", hashes)
	case *blnd.Blend:
		if a.Skeleton.Path == "" {
			return nil
		}
		s, err := d.skeletons.load(a.Skeleton.Path)
		if err != nil {
			return err
		}
		for _, m := range a.Masks {
			hashes := make([]uint32, len(m.Joints))
			for i, j := range m.Joints {
				hashes[i] = j.Hash
			}
			bindHashes(d.out, s, fmt.Sprintf("mask %d", m.UniqueID), hashes)
		}
		if missing := a.MissingChildren(); len(missing) != 0 {
			fmt.Fprintf(d.out, "# clips referencing missing children: %v\n", missing)
		}
	}
	return nil
}

func (d *dumper) dump(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "Cannot open %s", path)
	}
	defer f.Close()

	asset, format, err := rito.Decode(f)
	if err != nil {
		return errors.Wrapf(err, "%s", path)
	}
	if err := d.write(path, format, asset); err != nil {
		return err
	}
	if err := d.bind(asset); err != nil {
		log.Printf("[ritodump] %s: cannot bind skeleton: %v", path, err)
	}
	return nil
}

func main() {
	var cfgPath, output, encoding, root, skeletons string
	var depth int
	flag.StringVar(&cfgPath, "config", "", "YAML config file")
	flag.StringVar(&output, "output", "", "Output format: spew or yaml")
	flag.StringVar(&encoding, "encoding", "", "Name encoding, one of: "+strings.Join(config.ListEncodings(), ", "))
	flag.StringVar(&root, "root", ".", "Directory asset paths inside blends are relative to")
	flag.StringVar(&skeletons, "skl", "", "Comma separated skeletons to bind animations with")
	flag.IntVar(&depth, "depth", -1, "Dump depth, 0 for unlimited")
	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	if output != "" {
		cfg.Output = output
	}
	if encoding != "" {
		if err := config.SetEncoding(encoding); err != nil {
			log.Fatal(err)
		}
	}
	if depth >= 0 {
		cfg.DumpDepth = depth
	}
	if skeletons != "" {
		cfg.Skeletons = append(cfg.Skeletons, strings.Split(skeletons, ",")...)
	}
	utils.SetDumpDepth(cfg.DumpDepth)

	if flag.NArg() == 0 {
		log.Fatal("Provide asset files to dump. Use --help if you stuck.")
	}

	sc, err := newSkeletonCache(root, cfg.SkeletonCache)
	if err != nil {
		log.Fatal(err)
	}
	d := &dumper{cfg: cfg, skeletons: sc, out: os.Stdout}
	failed := 0
	for _, path := range flag.Args() {
		if err := d.dump(path); err != nil {
			log.Printf("[ritodump] %v", err)
			failed++
		}
	}
	if failed != 0 {
		os.Exit(1)
	}
}
