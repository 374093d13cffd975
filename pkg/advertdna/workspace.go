package advertdna

import (
	"fmt"

	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

// EnsureWorkspace recreates missing working directories and rewrites the
// engine config document when it is absent. It runs before every request so
// a directory removed underneath a running process heals itself.
func (p *Pipeline) EnsureWorkspace() error {
	dirs := []string{p.cfg.UploadDir, p.cfg.TempDir, p.cfg.LockDir, p.cfg.ConfigDir}
	if p.cfg.BackupDir != "" {
		dirs = append(dirs, p.cfg.BackupDir)
	}
	for _, dir := range dirs {
		if dir == "" || utils.DirExists(dir) {
			continue
		}
		if err := utils.MakeDir(dir); err != nil {
			return fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
		}
		p.log.Warnf("Recreated missing directory %s", dir)
	}

	if p.cfg.ConfigPath == "" || utils.FileExists(p.cfg.ConfigPath) {
		return nil
	}
	if p.cfg.EngineDocument.Database.Database == "" {
		p.log.Warnf("Engine config %s is missing and no document is configured", p.cfg.ConfigPath)
		return nil
	}
	if err := engine.WriteDocument(p.cfg.ConfigPath, p.cfg.EngineDocument); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	p.log.Warnf("Rewrote missing engine config %s", p.cfg.ConfigPath)
	return nil
}
