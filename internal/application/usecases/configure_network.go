package usecases

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/entities"
	"ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/infrastructure/metrics"
)

// ConfigureNetworkUseCase applies the pending descriptors of a node
type ConfigureNetworkUseCase struct {
	repository interfaces.DesiredInterfaceRepository
	applier    interfaces.InterfaceApplier
	logger     *logrus.Logger
}

func NewConfigureNetworkUseCase(
	repo interfaces.DesiredInterfaceRepository,
	applier interfaces.InterfaceApplier,
	logger *logrus.Logger,
) *ConfigureNetworkUseCase {
	return &ConfigureNetworkUseCase{
		repository: repo,
		applier:    applier,
		logger:     logger,
	}
}

// ConfigureNetworkInput is the input of ConfigureNetworkUseCase
type ConfigureNetworkInput struct {
	NodeName string
}

// ConfigureNetworkOutput counts the records handled in one run
type ConfigureNetworkOutput struct {
	ProcessedCount int
	FailedCount    int
	TotalCount     int
}

// Execute applies every pending record of the node. A record that fails is
// marked failed and does not stop the others.
func (uc *ConfigureNetworkUseCase) Execute(ctx context.Context, input ConfigureNetworkInput) (*ConfigureNetworkOutput, error) {
	pending, err := uc.repository.GetPendingInterfaces(ctx, input.NodeName)
	if err != nil {
		return nil, errors.NewOtherError("failed to fetch pending interfaces", err)
	}

	if len(pending) > 0 {
		uc.logger.WithFields(logrus.Fields{
			"node_name": input.NodeName,
			"pending":   len(pending),
		}).Info("Found interfaces to configure")
	}

	output := &ConfigureNetworkOutput{TotalCount: len(pending)}
	for _, record := range pending {
		start := time.Now()
		if err := uc.processInterface(ctx, record); err != nil {
			uc.logger.WithFields(logrus.Fields{
				"interface_id": record.ID,
				"error":        err,
			}).Error("Failed to configure interface")
			output.FailedCount++
			metrics.RecordInterfaceProcessing("configure", "failed", time.Since(start).Seconds())

			if updateErr := uc.repository.UpdateInterfaceStatus(ctx, record.ID, entities.StatusFailed); updateErr != nil {
				uc.logger.WithError(updateErr).Error("Failed to update interface status")
			}
			continue
		}
		output.ProcessedCount++
		metrics.RecordInterfaceProcessing("configure", "success", time.Since(start).Seconds())
	}
	return output, nil
}

func (uc *ConfigureNetworkUseCase) processInterface(ctx context.Context, record entities.DesiredInterface) error {
	if err := record.Validate(); err != nil {
		return errors.NewOtherError("invalid desired interface", err)
	}

	name, err := uc.applier.Apply(ctx, []byte(record.Descriptor))
	if err != nil {
		return err
	}
	record.MarkAsConfigured(name)

	if err := uc.repository.UpdateInterfaceName(ctx, record.ID, record.Name); err != nil {
		return errors.NewOtherError("failed to record interface name", err)
	}
	if err := uc.repository.UpdateInterfaceStatus(ctx, record.ID, record.Status); err != nil {
		return errors.NewOtherError("failed to update interface status", err)
	}

	uc.logger.WithFields(logrus.Fields{
		"interface_id":   record.ID,
		"interface_name": name,
	}).Info("Interface configured")
	return nil
}
