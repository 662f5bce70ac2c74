package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/internal/sqlite"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		adminEmail string
		dataDir    string
		seed       bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize shelf configuration and the development data directory",
		Long: "Write config.yaml (recording --base-url, --admin-email and --data-dir when given)\n" +
			"and prepare the data directory used by shelf serve-mock.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := paths.ConfigFile(a.configDir)
			updates := map[string]string{}
			if a.flags.baseURL != "" {
				updates[cfgKeyBaseURL] = a.flags.baseURL
			}
			if adminEmail != "" {
				updates[cfgKeyAdminEmail] = adminEmail
			}
			if dataDir != "" {
				updates[cfgKeyDataDir] = dataDir
			}
			if err := updateConfigFile(path, updates); err != nil {
				return systemError(fmt.Errorf("write config: %w", err))
			}
			if _, err := clientConfig(a.config); err != nil {
				return userError(err)
			}

			dir, err := paths.ResolveDataDir(dataDir, a.config.GetString(cfgKeyDataDir))
			if err != nil {
				return systemError(fmt.Errorf("resolve data dir: %w", err))
			}
			opts := []sqlite.Option{sqlite.WithLogger(a.logger)}
			if seed {
				opts = append(opts, sqlite.WithSampleData())
			}
			backend, err := sqlite.Open(dir, opts...)
			if err != nil {
				return systemError(fmt.Errorf("initialize storage: %w", err))
			}
			if err := backend.Close(); err != nil {
				return systemError(fmt.Errorf("finalize storage: %w", err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration: %s\n", path)
			fmt.Fprintf(out, "Data directory: %s\n", dir)
			fmt.Fprintln(out, "shelf initialized successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "default email for shelf login")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory for shelf serve-mock")
	cmd.Flags().BoolVar(&seed, "seed", false, "fill empty resources with the sample catalogue")
	return cmd
}

// updateConfigFile sets each key in updates on the top-level mapping of the
// YAML file at path, keeping comments and the order of existing keys.
func updateConfigFile(path string, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parse %s: top level is not a mapping", path)
	}
	for _, key := range sortedKeys(updates) {
		setMappingValue(root, key, updates[key])
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func setMappingValue(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1].SetString(value)
			return
		}
	}
	k := &yaml.Node{}
	k.SetString(key)
	v := &yaml.Node{}
	v.SetString(value)
	m.Content = append(m.Content, k, v)
}
