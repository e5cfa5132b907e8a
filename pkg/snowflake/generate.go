package snowflake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// 节点号 10 位：高 5 位机房，低 5 位机器
const partMax = 1<<5 - 1

var (
	node     *snowflake.Node
	initOnce sync.Once
	initErr  error

	errNotInitialized = errors.New("snowflake: call Init before generating ids")
)

func nodeID(machineID, dataCenterID int64) (int64, error) {
	if machineID < 0 || machineID > partMax {
		return 0, fmt.Errorf("snowflake: machine id %d out of range [0,%d]", machineID, partMax)
	}
	if dataCenterID < 0 || dataCenterID > partMax {
		return 0, fmt.Errorf("snowflake: datacenter id %d out of range [0,%d]", dataCenterID, partMax)
	}
	return dataCenterID<<5 | machineID, nil
}

// Init 只生效一次，重复调用返回第一次的结果
func Init(machineID, dataCenterID int64) error {
	initOnce.Do(func() {
		id, err := nodeID(machineID, dataCenterID)
		if err != nil {
			initErr = err
			return
		}
		node, initErr = snowflake.NewNode(id)
	})
	return initErr
}

// NextID 打卡和任务的主键
func NextID() (int64, error) {
	if node == nil {
		return 0, errNotInitialized
	}
	return node.Generate().Int64(), nil
}

func MustNextID() int64 {
	id, err := NextID()
	if err != nil {
		panic(err)
	}
	return id
}
