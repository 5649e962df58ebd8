package archive

import (
	"errors"
	"fmt"

	"github.com/graymeta/stow"

	//Load drivers
	"github.com/graymeta/stow/azure"  //Azure storage
	"github.com/graymeta/stow/b2"     //Backblaze storage
	"github.com/graymeta/stow/google" //Google storage
	"github.com/graymeta/stow/local"  //local storage
	"github.com/graymeta/stow/oracle" //oracle storage
	"github.com/graymeta/stow/s3"     //s3 storage
	"github.com/graymeta/stow/sftp"   //sftp storage
	"github.com/graymeta/stow/swift"  //swift storage
)

//Object store (stow.Location) kinds an archive can be kept in
const (
	KindAzure               = azure.Kind
	KindBackBlazeB2         = b2.Kind
	KindGoogleCloudStorage  = google.Kind
	KindLocal               = local.Kind
	KindS3                  = s3.Kind
	KindOracleObjectStorage = oracle.Kind
	KindSFTP                = sftp.Kind
	KindSwift               = swift.Kind
)

//Kinds lists every supported object store kind
var Kinds = []string{KindS3, KindBackBlazeB2, KindLocal, KindAzure, KindSwift, KindGoogleCloudStorage, KindOracleObjectStorage, KindSFTP}

//SupportsMetaData returns false if the provided kind is known to not support
// item metadata, which compressed archives require
func SupportsMetaData(kind string) bool {
	switch kind {
	case KindLocal, KindSFTP:
		return false
	}
	return true
}

//NewStore dials the object store, see stow.Dial
func NewStore(kind string, config stow.Config) (stow.Location, error) {
	return stow.Dial(kind, config)
}

//ValidateConfig verifies config parameters, see stow.Validate
func ValidateConfig(kind string, config stow.Config) error {
	return stow.Validate(kind, config)
}

//OpenContainer returns the named container of store, creating it if absent
func OpenContainer(store stow.Location, name string) (stow.Container, error) {
	container, err := store.Container(name)
	if err == nil {
		return container, nil
	}
	if !errors.Is(err, stow.ErrNotFound) {
		return nil, fmt.Errorf("Could not open remote container %q: %w", name, err)
	}
	if container, err = store.CreateContainer(name); err != nil {
		return nil, fmt.Errorf("Could not create remote container %q: %w", name, err)
	}
	return container, nil
}

func describeContainer(container stow.Container) string {
	return fmt.Sprintf("remote container %q (%q)", container.ID(), container.Name())
}

func describeItem(item stow.Item) string {
	return fmt.Sprintf("remote object %q (%q)", item.ID(), item.Name())
}
