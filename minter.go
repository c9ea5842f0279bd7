package fhir_etl

import (
	"fmt"

	"github.com/google/uuid"
)

// Mint derives the identifier of a resource from the cohort namespace seed,
// the project id, the resource type and the natural key. The namespace is a
// name based (MD5) uuid of the seed under the DNS namespace and the identifier
// a name based (SHA1) uuid of "{projectID}/{resourceType}/{naturalKey}".
func Mint(seed, projectID, resourceType, naturalKey string) uuid.UUID {
	return NewIDMinter(seed, projectID).Mint(resourceType, naturalKey)
}

// MintRaw derives an identifier from "{projectID}/{naturalKey}" with no
// resource type segment.
func MintRaw(seed, projectID, naturalKey string) uuid.UUID {
	return NewIDMinter(seed, projectID).MintRaw(naturalKey)
}

// IsValidID reports whether value is a well formed version 5 uuid.
func IsValidID(value string) bool {
	id, err := uuid.Parse(value)
	if err != nil {
		return false
	}
	return id.Version() == 5
}

type IDMinter struct {
	seed      string
	projectID string
	namespace uuid.UUID
}

func NewIDMinter(seed, projectID string) IDMinter {
	return IDMinter{
		seed:      seed,
		projectID: projectID,
		namespace: uuid.NewMD5(uuid.NameSpaceDNS, []byte(seed)),
	}
}

func (m IDMinter) ProjectID() string { return m.projectID }

func (m IDMinter) Namespace() uuid.UUID { return m.namespace }

func (m IDMinter) Mint(resourceType, naturalKey string) uuid.UUID {
	return m.MintRaw(fmt.Sprintf("%s/%s", resourceType, naturalKey))
}

func (m IDMinter) MintRaw(naturalKey string) uuid.UUID {
	return uuid.NewSHA1(m.namespace, []byte(fmt.Sprintf("%s/%s", m.projectID, naturalKey)))
}

// MintIdentifier uses "{system}|{value}" of the identifier as the natural key.
func (m IDMinter) MintIdentifier(resourceType string, identifier Identifier) string {
	return m.Mint(resourceType, identifier.System+"|"+identifier.Value).String()
}

// Reference renders "{resourceType}/{id}" for the identifier.
func (m IDMinter) Reference(resourceType string, identifier Identifier) string {
	return resourceType + "/" + m.MintIdentifier(resourceType, identifier)
}
