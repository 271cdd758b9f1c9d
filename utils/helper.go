package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
)

func GenerateUniqueFilename() string {

	timestamp := time.Now().UnixNano()

	random := rand.Intn(1000)

	uniqueFilename := fmt.Sprintf("%d_%d", timestamp, random)

	return uniqueFilename
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

// MasterLock serializes writers of a billing-master scope. The returned
// release func must be called once the run's update pass is finished.
func MasterLock(ctx context.Context, scope string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", scope, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("recon:master:%s", scope)
	lock, err := locker.Obtain(ctx, lockKey, 10*time.Minute, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(2*time.Second), 5),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain master lock", scope, err)
		return nil, errors.New("could not obtain master lock for scope")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining master lock", scope, err)
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
