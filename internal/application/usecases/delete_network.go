package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/entities"
	"ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/infrastructure/metrics"
)

// DeleteNetworkInput is the input of DeleteNetworkUseCase
type DeleteNetworkInput struct {
	NodeName string
}

// DeleteNetworkOutput lists the interfaces removed in one run
type DeleteNetworkOutput struct {
	DeletedInterfaces []string
	TotalDeleted      int
	Errors            []error
}

// DeleteNetworkUseCase removes the interfaces of records marked for deletion
type DeleteNetworkUseCase struct {
	repository interfaces.DesiredInterfaceRepository
	applier    interfaces.InterfaceApplier
	logger     *logrus.Logger
}

func NewDeleteNetworkUseCase(
	repo interfaces.DesiredInterfaceRepository,
	applier interfaces.InterfaceApplier,
	logger *logrus.Logger,
) *DeleteNetworkUseCase {
	return &DeleteNetworkUseCase{
		repository: repo,
		applier:    applier,
		logger:     logger,
	}
}

// Execute removes every record of the node marked for deletion. A record
// whose removal fails stays marked and is retried on the next run.
func (uc *DeleteNetworkUseCase) Execute(ctx context.Context, input DeleteNetworkInput) (*DeleteNetworkOutput, error) {
	deleting, err := uc.repository.GetDeletingInterfaces(ctx, input.NodeName)
	if err != nil {
		return nil, errors.NewOtherError("failed to fetch interfaces to delete", err)
	}

	output := &DeleteNetworkOutput{
		DeletedInterfaces: []string{},
		Errors:            []error{},
	}
	if len(deleting) == 0 {
		return output, nil
	}

	uc.logger.WithFields(logrus.Fields{
		"node_name": input.NodeName,
		"deleting":  len(deleting),
	}).Info("Found interfaces to delete")

	for _, record := range deleting {
		start := time.Now()
		if err := uc.deleteInterface(ctx, record); err != nil {
			uc.logger.WithFields(logrus.Fields{
				"interface_id":   record.ID,
				"interface_name": record.Name,
				"error":          err,
			}).Error("Failed to delete interface")
			output.Errors = append(output.Errors, fmt.Errorf("failed to delete interface %d: %w", record.ID, err))
			metrics.RecordInterfaceProcessing("delete", "failed", time.Since(start).Seconds())
			continue
		}
		if record.Name != "" {
			output.DeletedInterfaces = append(output.DeletedInterfaces, record.Name)
		}
		output.TotalDeleted++
		metrics.RecordInterfaceProcessing("delete", "success", time.Since(start).Seconds())
	}
	return output, nil
}

func (uc *DeleteNetworkUseCase) deleteInterface(ctx context.Context, record entities.DesiredInterface) error {
	// never configured, nothing on the host
	if record.Name != "" {
		if err := uc.applier.Remove(ctx, record.Name); err != nil {
			return err
		}
	}

	record.MarkAsRemoved()
	if err := uc.repository.UpdateInterfaceStatus(ctx, record.ID, record.Status); err != nil {
		return errors.NewOtherError("failed to update interface status", err)
	}

	uc.logger.WithFields(logrus.Fields{
		"interface_id":   record.ID,
		"interface_name": record.Name,
	}).Info("Interface deleted")
	return nil
}
