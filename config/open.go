package config

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/sardine-ai/configconsole/source"
)

// Open creates the store declared by rc. Document backed stores are empty
// until they are refreshed.
func (rc RepositoryConfig) Open(ctx context.Context) (source.Store, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	logrus.WithField("repository", rc.Name).WithField("type", rc.Type).Debug("opening repository")

	switch rc.Type {
	case TypeFile:
		return source.NewFileRepository(rc.Name, rc.Path)
	case TypeGit:
		store, err := source.NewGitRepository(rc.Name, rc.URL, rc.Path, rc.Branch)
		if err != nil {
			return nil, err
		}
		if rc.Username != "" {
			store.Backend.(*source.GitBackend).Auth = &githttp.BasicAuth{Username: rc.Username, Password: rc.Password}
		}
		return store, nil
	case TypeS3:
		var client *s3.Client
		if rc.Region != "" {
			cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(rc.Region))
			if err != nil {
				return nil, fmt.Errorf("repository %q: loading aws config: %w", rc.Name, err)
			}
			client = s3.NewFromConfig(cfg)
		}
		return source.NewAwsS3Repository(rc.Name, rc.Bucket, rc.Object, client), nil
	case TypeGCS:
		var opts []option.ClientOption
		if rc.Anonymous {
			opts = append(opts, option.WithoutAuthentication())
		}
		return source.NewGcpStorageRepository(rc.Name, rc.Bucket, rc.Object, nil, opts...), nil
	case TypeSQLite:
		return source.NewSQLStore(rc.Name, rc.Path)
	case TypeHTTP:
		return source.NewWebRepository(rc.URL, rc.APIKey)
	default:
		return nil, fmt.Errorf("repository %q: unknown type %q", rc.Name, rc.Type)
	}
}

// OpenRepositories opens every declared store that can be served as a raw
// document. Remote HTTP stores are skipped.
func (c *Config) OpenRepositories(ctx context.Context) ([]source.Repository, error) {
	var repos []source.Repository
	for _, rc := range c.Repositories {
		store, err := rc.Open(ctx)
		if err != nil {
			return nil, err
		}
		repo, ok := store.(source.Repository)
		if !ok {
			logrus.WithField("repository", rc.Name).Warn("repository cannot be served, skipping")
			continue
		}
		repos = append(repos, repo)
	}
	return repos, nil
}
