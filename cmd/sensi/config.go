package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gethiox/sensi/internal/pkg/config"
	"github.com/gethiox/sensi/internal/pkg/logger"
)

//go:embed sensi-config/*
var templateConfig embed.FS

const templateDir = "sensi-config"

// createConfigDirectoryIfNeeded creates config directory if necessary.
// Files missing in an existing directory are restored, files present stay intact.
func createConfigDirectoryIfNeeded(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("\"%s\" is not a directory", dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("cannot open config directory: %w", err)
	case err != nil:
		log.Info("config not exist, generating tree...", logger.Info)
	}

	err = fs.WalkDir(templateConfig, templateDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, strings.TrimPrefix(path, templateDir))

		if d.IsDir() {
			err := os.MkdirAll(target, 0o777)
			if err != nil {
				return fmt.Errorf("cannot create \"%s\" directory: %w", target, err)
			}
			return nil
		}

		dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				log.Info(fmt.Sprintf("File \"%s\" exists, leaving it intact", target), logger.Debug)
				return nil
			}
			return fmt.Errorf("cannot open \"%s\" file: %w", target, err)
		}
		defer dst.Close()

		data, err := fs.ReadFile(templateConfig, path)
		if err != nil {
			return fmt.Errorf("cannot read \"%s\" template file: %w", path, err)
		}

		_, err = dst.Write(data)
		if err != nil {
			return fmt.Errorf("cannot write data into \"%s\" file: %w", target, err)
		}

		log.Info(fmt.Sprintf("Created \"%s\" file", target), logger.Info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("config generation failed: %w", err)
	}
	return nil
}

func loadConfig(dir string) (config.Config, config.Devices, error) {
	cfg, err := config.Load(filepath.Join(dir, config.MainFile))
	if err != nil {
		return config.Config{}, config.Devices{}, err
	}
	devices, err := config.LoadDevices(filepath.Join(dir, config.DevicesFile))
	if err != nil {
		return config.Config{}, config.Devices{}, err
	}
	return cfg, devices, nil
}
