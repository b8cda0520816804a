package sync

import (
	"encoding/json"
	"fmt"

	"github.com/kalambet/jarvis/internal/cloud"
	"github.com/kalambet/jarvis/internal/storage"
)

// yandexCredentials is the stored blob for a Yandex Disk connection.
type yandexCredentials struct {
	Token string `json:"token"`
}

// webdavCredentials is the stored blob for an iCloud (WebDAV) connection.
type webdavCredentials struct {
	Endpoint string `json:"endpoint"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewConnector builds the provider client for a connection from its stored
// credentials. It is the production ConnectorFactory.
func NewConnector(conn storage.CloudConnection) (cloud.Connector, error) {
	switch conn.Provider {
	case storage.ProviderYandexDisk:
		var creds yandexCredentials
		if err := json.Unmarshal([]byte(conn.Credentials), &creds); err != nil {
			return nil, fmt.Errorf("parsing yandex credentials: %w", err)
		}
		if creds.Token == "" {
			return nil, fmt.Errorf("yandex connection %s has no oauth token", conn.ID)
		}
		return cloud.NewYandexDisk(creds.Token), nil

	case storage.ProviderICloud:
		var creds webdavCredentials
		if err := json.Unmarshal([]byte(conn.Credentials), &creds); err != nil {
			return nil, fmt.Errorf("parsing webdav credentials: %w", err)
		}
		if creds.Endpoint == "" || creds.Username == "" {
			return nil, fmt.Errorf("webdav connection %s is missing endpoint or username", conn.ID)
		}
		return cloud.NewWebDAV(creds.Endpoint, creds.Username, creds.Password), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", conn.Provider)
	}
}
