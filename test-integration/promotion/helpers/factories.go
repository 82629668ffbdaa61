package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/contract-promoter/internal/config"
)

const (
	// ActorRef names the seeded user promotions are attributed to
	ActorRef = "user-jellyjuju@1.0.0"

	// ManifestMediaType is the media type of seeded manifests
	ManifestMediaType = "application/vnd.oci.image.manifest.v1+json"

	// ManifestBody is the manifest seeded for drafts with an artifact
	ManifestBody = `{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json",` +
		`"config":{"mediaType":"application/vnd.oci.image.config.v1+json","digest":"sha256:44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a","size":2},"layers":[]}`
)

// Draft describes a draft card to seed
type Draft struct {
	Slug    string
	Version string

	// Artifact is stored as $transformer.artifactReady when not nil
	Artifact any

	// Repository contains the draft when set
	Repository string
}

// SeedDocument returns a seed document with the card, contract-repository,
// user and link types, the actor, an hour-long session for it and drafts
func SeedDocument(drafts ...Draft) string {
	doc := map[string]any{
		"types": []any{
			map[string]any{"slug": "card", "schema": map[string]any{"type": "object", "required": []any{"title"}}},
			map[string]any{"slug": "contract-repository", "schema": map[string]any{"type": "object"}},
			map[string]any{"slug": "user", "schema": map[string]any{"type": "object"}},
			map[string]any{"slug": "link", "schema": map[string]any{"type": "object", "required": []any{"inverseName", "from", "to"}}},
		},
		"sessions": []any{
			map[string]any{"actor": ActorRef, "ttl": "1h"},
		},
	}

	records := []any{
		map[string]any{"slug": "user-jellyjuju", "type": "user@1.0.0", "version": "1.0.0"},
	}
	var links []any
	repos := map[string]bool{}
	for _, d := range drafts {
		data := map[string]any{"title": d.Slug}
		if d.Artifact != nil {
			data["$transformer"] = map[string]any{"artifactReady": d.Artifact}
		}
		records = append(records, map[string]any{
			"slug": d.Slug, "type": "card@1.0.0", "version": d.Version, "data": data,
		})

		if d.Repository == "" {
			continue
		}
		if !repos[d.Repository] {
			repos[d.Repository] = true
			records = append(records, map[string]any{
				"slug": d.Repository, "type": "contract-repository@1.0.0", "version": "1.0.0",
			})
		}
		links = append(links, map[string]any{
			"from":    d.Repository + "@1.0.0",
			"to":      d.Slug + "@" + d.Version,
			"verb":    "contains",
			"inverse": "is contained in",
		})
	}
	doc["records"] = records
	doc["links"] = links

	out, err := yaml.Marshal(doc)
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), "Failed to marshal seed document")
	return string(out)
}

// WriteConfigYAML writes a memory-store configuration to dir. registryHost
// may be empty; auth may be nil.
func WriteConfigYAML(dir, registryHost string, auth *config.AuthConfig) string {
	cfg := config.Config{
		Storage:   config.StorageConfig{Type: config.StorageTypeMemory},
		Promotion: &config.PromotionConfig{SessionTTL: "5m"},
		Auth:      auth,
	}
	if registryHost != "" {
		cfg.Registry = &config.RegistryConfig{Host: registryHost, Insecure: true, Timeout: "2s"}
	}

	out, err := yaml.Marshal(cfg)
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), "Failed to marshal config")

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, out, 0600)).To(gomega.Succeed())
	return path
}

// WriteFile writes content to name in dir
func WriteFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), fmt.Sprintf("Failed to write %s", name))
	return path
}
