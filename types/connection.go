package types

import (
	"fmt"
	"time"

	"github.com/datazip-inc/rwcdc/utils"
)

// ConnectionProfile holds everything needed to reach one database
type ConnectionProfile struct {
	ID        int64            `json:"id" db:"id"`
	Name      string           `json:"name" db:"name" validate:"required"`
	DBType    DBType           `json:"db_type" db:"db_type" validate:"required"`
	Host      string           `json:"host" db:"host" validate:"required"`
	Port      int              `json:"port" db:"port" validate:"gte=1,lte=65535"`
	Username  string           `json:"username" db:"username" validate:"required"`
	Password  string           `json:"password,omitempty" db:"password"`
	Database  string           `json:"database_name,omitempty" db:"database_name"`
	HTTPPort  int              `json:"http_port,omitempty" db:"http_port" validate:"omitempty,gte=1,lte=65535"`
	SSL       *utils.SSLConfig `json:"ssl,omitempty" db:"ssl"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// Address returns host:port
func (c *ConnectionProfile) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ConnectionProfile) String() string {
	return fmt.Sprintf("%s[%d] %s@%s", c.DBType, c.ID, c.Username, c.Address())
}
