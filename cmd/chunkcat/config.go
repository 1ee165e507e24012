package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chunkstream/cache"
)

// fileConfig is the optional YAML configuration file.
//
//	store:
//	  type: s3
//	  bucket: segments
//	  prefix: tiered/
//	cache:
//	  size: 268435456
//	  retention.ms: 600000
//	disk_cache:
//	  dir: /var/cache/chunkcat
//	  size: -1
//	read_ahead: 2
type fileConfig struct {
	Store     storeConfig    `yaml:"store"`
	Cache     map[string]any `yaml:"cache"`
	DiskCache map[string]any `yaml:"disk_cache"`
	ReadAhead int            `yaml:"read_ahead"`
}

type storeConfig struct {
	Type      string `yaml:"type"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Insecure  bool   `yaml:"insecure"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// cacheConfig builds cache bounds from a YAML section. A section that is
// absent and has no default size yields ok=false: no cache.
func cacheConfig(section map[string]any, defaultSize string) (cfg cache.Config, ok bool, err error) {
	var opts []cache.ConfigOption
	if defaultSize != "" {
		size, err := parseSize(defaultSize)
		if err != nil {
			return cache.Config{}, false, err
		}
		opts = append(opts, cache.WithDefaultSize(size))
	}

	if section == nil && len(opts) == 0 {
		return cache.Config{}, false, nil
	}

	cfg, err = cache.NewConfig(section, opts...)
	if err != nil {
		return cache.Config{}, false, err
	}
	return cfg, true, nil
}

// parseSize accepts "-1" for unbounded or a human size such as "64MiB".
func parseSize(s string) (int64, error) {
	if s == "-1" {
		return -1, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// diskCacheDir pulls the directory out of the disk_cache section, leaving
// the bounds for cache.NewConfig.
func diskCacheDir(section map[string]any) (string, map[string]any) {
	if section == nil {
		return "", nil
	}
	dir, _ := section["dir"].(string)
	bounds := make(map[string]any, len(section))
	for k, v := range section {
		if k != "dir" {
			bounds[k] = v
		}
	}
	return dir, bounds
}
