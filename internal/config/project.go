package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Project is the project file: the scenes and collections the engine knows.
type Project struct {
	Version     int                `yaml:"version"`
	Scenes      []SceneConfig      `yaml:"scenes"`
	Collections []CollectionConfig `yaml:"collections"`
}

type SceneConfig struct {
	ID            string `yaml:"id"`
	Path          string `yaml:"path"`
	LoadingScreen bool   `yaml:"loading_screen"`
	SplashScreen  bool   `yaml:"splash_screen"`
	Locked        bool   `yaml:"locked"`
	InBuild       *bool  `yaml:"in_build"`
}

type CollectionConfig struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	ActiveScene   string           `yaml:"active_scene"`
	LoadingScreen string           `yaml:"loading_screen"`
	UnloadUnused  bool             `yaml:"unload_unused"`
	Scenes        []SceneTagConfig `yaml:"scenes"`
	Scripts       []ScriptConfig   `yaml:"scripts"`
}

type SceneTagConfig struct {
	Scene string `yaml:"scene"`
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

type ScriptConfig struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
}

// LoadProject reads and validates a project file.
func LoadProject(path string) (*Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if p.Version != 1 {
		return nil, fmt.Errorf("unsupported project.yaml version: %d", p.Version)
	}

	return &p, nil
}

// BuildCatalog turns the project into a scene catalog. Unknown scene
// references and invalid tags are errors.
func (p *Project) BuildCatalog() (*scene.Catalog, error) {
	cat := scene.NewCatalog()
	for _, sc := range p.Scenes {
		inBuild := sc.InBuild == nil || *sc.InBuild
		s := &scene.Scene{
			ID:              sc.ID,
			Path:            sc.Path,
			IsLoadingScreen: sc.LoadingScreen,
			IsSplashScreen:  sc.SplashScreen,
			IsLocked:        sc.Locked,
		}
		if err := cat.AddScene(s, inBuild); err != nil {
			return nil, err
		}
	}

	for _, cc := range p.Collections {
		col, err := p.buildCollection(cat, cc)
		if err != nil {
			return nil, err
		}
		if err := cat.AddCollection(col); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func (p *Project) buildCollection(cat *scene.Catalog, cc CollectionConfig) (*scene.Collection, error) {
	col := &scene.Collection{
		ID:           cc.ID,
		Name:         cc.Name,
		UnloadUnused: cc.UnloadUnused,
	}
	if col.Name == "" {
		col.Name = cc.ID
	}

	for _, t := range cc.Scenes {
		s := cat.Scene(t.Scene)
		if s == nil {
			return nil, fmt.Errorf("collection %s: unknown scene %q", cc.ID, t.Scene)
		}
		open, ok := scene.ParseOpenBehavior(t.Open)
		if !ok {
			return nil, fmt.Errorf("collection %s: scene %s: unknown open behavior %q", cc.ID, t.Scene, t.Open)
		}
		closeBehavior, ok := scene.ParseCloseBehavior(t.Close)
		if !ok {
			return nil, fmt.Errorf("collection %s: scene %s: unknown close behavior %q", cc.ID, t.Scene, t.Close)
		}
		col.Tags = append(col.Tags, scene.SceneTag{Scene: s, Open: open, Close: closeBehavior})
	}

	if cc.ActiveScene != "" {
		s := cat.Scene(cc.ActiveScene)
		if s == nil || !col.Contains(s) {
			return nil, fmt.Errorf("collection %s: active scene %q is not part of the collection", cc.ID, cc.ActiveScene)
		}
		col.ActiveScene = s
	}

	if cc.LoadingScreen != "" {
		s := cat.Scene(cc.LoadingScreen)
		if s == nil {
			return nil, fmt.Errorf("collection %s: unknown loading screen %q", cc.ID, cc.LoadingScreen)
		}
		if !s.IsLoadingScreen {
			return nil, fmt.Errorf("collection %s: scene %q is not a loading screen", cc.ID, cc.LoadingScreen)
		}
		col.LoadingScreen = s
	}

	for _, sc := range cc.Scripts {
		if sc.Name == "" || sc.Source == "" {
			return nil, fmt.Errorf("collection %s: scripts need a name and a source", cc.ID)
		}
		col.Scripts = append(col.Scripts, scene.Script{Name: sc.Name, Source: sc.Source})
	}
	return col, nil
}
